package models

// Asset is a read-only view of an asset registry record, limited to what an audit needs.
type Asset struct {
	ID          int    `json:"id" yaml:"id"`
	Code        string `json:"code" yaml:"code"`
	Barcode     string `json:"barcode,omitempty" yaml:"barcode"`
	Name        string `json:"name" yaml:"name"`
	CategoryID  *int   `json:"category_id,omitempty" yaml:"category_id"`
	LocationID  *int   `json:"location_id,omitempty" yaml:"location_id"`
	CustodianID *int   `json:"custodian_id,omitempty" yaml:"custodian_id"`
	Condition   string `json:"condition" yaml:"condition"`
}

// Snapshot captures the asset's current custodian, location, condition and code.
func (a Asset) Snapshot() Snapshot {
	return Snapshot{
		Code:        a.Code,
		CustodianID: copyInt(a.CustodianID),
		LocationID:  copyInt(a.LocationID),
		Condition:   a.Condition,
	}
}

// Option is one selectable value when building audit criteria.
type Option struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// CriteriaOptions lists the categories, locations and custodians known to the registry.
type CriteriaOptions struct {
	Categories []Option `json:"categories"`
	Locations  []Option `json:"locations"`
	Custodians []Option `json:"custodians"`
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
