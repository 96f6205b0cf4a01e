package models

// DocumentType is one entry of the document type catalog.
type DocumentType struct {
	Code      string `db:"code" json:"code"`
	Label     string `db:"label" json:"label"`
	SortOrder int    `db:"sort_order" json:"-"`
	Active    bool   `db:"active" json:"-"`
}
