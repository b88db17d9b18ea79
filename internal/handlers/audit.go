package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crucial707/asset-audit/internal/audit"
	"github.com/crucial707/asset-audit/internal/middleware"
	"github.com/crucial707/asset-audit/internal/models"
)

// ActivityLogger records and lists who did what. repo.ActivityRepo and memstore.ActivityLog satisfy it.
type ActivityLogger interface {
	Log(ctx context.Context, userID int, action, resourceType string, resourceID int, details string) error
	List(ctx context.Context, limit, offset int) ([]models.ActivityEntry, error)
}

// AuditHandler serves the /v1/audits endpoints.
type AuditHandler struct {
	Service  *audit.Service
	Activity ActivityLogger // optional
	Logger   *slog.Logger
}

func NewAuditHandler(svc *audit.Service, activity ActivityLogger, logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{Service: svc, Activity: activity, Logger: logger}
}

var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationFields flattens validator errors into field -> rule.
func validationFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[ns] = rule
	}
	return fields
}

type criteriaInput struct {
	CategoryIDs  []int `json:"category_ids" validate:"omitempty,dive,gt=0"`
	LocationIDs  []int `json:"location_ids" validate:"omitempty,dive,gt=0"`
	CustodianIDs []int `json:"custodian_ids" validate:"omitempty,dive,gt=0"`
}

type createAuditInput struct {
	Name        string        `json:"name" validate:"required,max=255"`
	Description string        `json:"description" validate:"max=2000"`
	Criteria    criteriaInput `json:"criteria"`
}

type scanInput struct {
	Code  string `json:"code" validate:"required,max=255"`
	Notes string `json:"notes" validate:"max=1000"`
}

// decodeAndValidate writes the 400 response itself and reports false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			JSONError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		JSONValidationError(w, "validation failed", validationFields(err), http.StatusBadRequest)
		return false
	}
	return true
}

func auditID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		JSONError(w, "invalid audit id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// pagination parses limit (default 50, max 200) and offset (default 0). Bad values fall back to defaults.
func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= 200 {
			limit = val
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil && val >= 0 {
			offset = val
		}
	}
	return limit, offset
}

// logActivity records a successful mutation for the authenticated user, if any.
func (h *AuditHandler) logActivity(r *http.Request, action string, id int, details string) {
	if h.Activity == nil {
		return
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		return
	}
	if err := h.Activity.Log(r.Context(), userID, action, "audit", id, details); err != nil {
		h.Logger.Warn("activity log write failed", "action", action, "audit_id", id, "error", err)
	}
}

// ListAudits returns audits. Query: state, q, limit (default 50), offset (default 0).
func (h *AuditHandler) ListAudits(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	q := r.URL.Query()
	list, total, err := h.Service.List(r.Context(), models.AuditFilter{
		State:  models.AuditState(q.Get("state")),
		Search: q.Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeServiceError(w, h.Logger, err, nil)
		return
	}
	JSONResult(w, http.StatusOK, "", map[string]any{
		"audits": list,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *AuditHandler) CreateAudit(w http.ResponseWriter, r *http.Request) {
	var input createAuditInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	a, err := h.Service.Create(r.Context(), audit.CreateInput{
		Name:        input.Name,
		Description: input.Description,
		Criteria: models.Criteria{
			CategoryIDs:  input.Criteria.CategoryIDs,
			LocationIDs:  input.Criteria.LocationIDs,
			CustodianIDs: input.Criteria.CustodianIDs,
		},
	})
	if err != nil {
		writeServiceError(w, h.Logger, err, nil)
		return
	}
	h.logActivity(r, "create", a.ID, a.Code)
	JSONResult(w, http.StatusCreated, "audit created", a)
}

func (h *AuditHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := auditID(w, r)
	if !ok {
		return
	}
	detail, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.Logger, err, nil)
		return
	}
	JSONResult(w, http.StatusOK, "", detail)
}

func (h *AuditHandler) DeleteAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := auditID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.Logger, err, nil)
		return
	}
	h.logActivity(r, "delete", id, "")
	JSONResult(w, http.StatusOK, "audit deleted", map[string]int{"id": id})
}

func (h *AuditHandler) StartAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := auditID(w, r)
	if !ok {
		return
	}
	a, err := h.Service.Start(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.Logger, err, nil)
		return
	}
	h.logActivity(r, "start", id, "")
	JSONResult(w, http.StatusOK, "audit started", a)
}

var scanMessages = map[audit.Outcome]string{
	audit.OutcomeFound:      "asset found",
	audit.OutcomeExtra:      "unexpected asset recorded",
	audit.OutcomeOutOfScope: "asset outside audit scope recorded",
}

// ScanAudit classifies one scanned code. Already-scanned assets answer 409 with the asset attached.
func (h *AuditHandler) ScanAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := auditID(w, r)
	if !ok {
		return
	}
	var input scanInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	res, err := h.Service.Scan(r.Context(), id, input.Code, input.Notes)
	if err != nil {
		writeServiceError(w, h.Logger, err, res)
		return
	}
	h.logActivity(r, "scan", id, fmt.Sprintf("%s %s", res.Outcome, input.Code))
	JSONResult(w, http.StatusOK, scanMessages[res.Outcome], res)
}

func (h *AuditHandler) FinalizeAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := auditID(w, r)
	if !ok {
		return
	}
	a, err := h.Service.Finalize(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.Logger, err, nil)
		return
	}
	h.logActivity(r, "finalize", id, "")
	JSONResult(w, http.StatusOK, "audit finalized", a)
}

func (h *AuditHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := auditID(w, r)
	if !ok {
		return
	}
	report, err := h.Service.Compile(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.Logger, err, nil)
		return
	}
	JSONResult(w, http.StatusOK, "", report)
}

// ListFindings returns an audit's findings. Query: kind, severity, unresolved (bool).
func (h *AuditHandler) ListFindings(w http.ResponseWriter, r *http.Request) {
	id, ok := auditID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := models.FindingFilter{
		Kind:     models.FindingKind(q.Get("kind")),
		Severity: models.Severity(q.Get("severity")),
	}
	if u := q.Get("unresolved"); u != "" {
		b, err := strconv.ParseBool(u)
		if err != nil {
			JSONValidationError(w, "validation failed", map[string]string{"unresolved": "must be a boolean"}, http.StatusBadRequest)
			return
		}
		filter.UnresolvedOnly = b
	}

	findings, err := h.Service.Findings(r.Context(), id, filter)
	if err != nil {
		writeServiceError(w, h.Logger, err, nil)
		return
	}
	JSONResult(w, http.StatusOK, "", findings)
}

func (h *AuditHandler) Options(w http.ResponseWriter, r *http.Request) {
	opts, err := h.Service.Options(r.Context())
	if err != nil {
		writeServiceError(w, h.Logger, err, nil)
		return
	}
	JSONResult(w, http.StatusOK, "", opts)
}

// ListActivity returns recent activity entries. Query: limit (default 50), offset (default 0).
func (h *AuditHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	if h.Activity == nil {
		JSONResult(w, http.StatusOK, "", []models.ActivityEntry{})
		return
	}
	limit, offset := pagination(r)
	entries, err := h.Activity.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.Logger, err, nil)
		return
	}
	JSONResult(w, http.StatusOK, "", entries)
}
