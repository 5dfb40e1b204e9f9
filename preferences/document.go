package preferences

import (
	"reflect"

	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/layering"
	"github.com/goliatone/go-accountstate/revision"
)

// Document is one preference document. The installation default document is
// owned by account.Installation; any other owner marks a user override.
type Document struct {
	AccountID account.ID  `json:"account_id"`
	Revision  revision.ID `json:"revision,omitempty"`
	General   General     `json:"general"`
	Diff      Diff        `json:"diff"`
	Edit      Edit        `json:"edit"`
}

// NewDefaultDocument returns an empty installation default document.
func NewDefaultDocument() Document {
	return Document{AccountID: account.Installation}
}

// NewUserDocument returns an empty override document owned by id.
func NewUserDocument(id account.ID) Document {
	return Document{AccountID: id}
}

// IsDefault reports whether the document is the installation default.
func (d Document) IsDefault() bool {
	return d.AccountID.IsInstallation()
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	return layering.Clone(d)
}

// IsEmpty reports whether no field of any category is present.
func (d Document) IsEmpty() bool {
	return reflect.ValueOf(d.General).IsZero() &&
		reflect.ValueOf(d.Diff).IsZero() &&
		reflect.ValueOf(d.Edit).IsZero()
}

// Section returns the category partition of the document.
func (d Document) Section(c Category) (Settings, error) {
	switch c {
	case CategoryGeneral:
		return layering.Clone(d.General), nil
	case CategoryDiff:
		return layering.Clone(d.Diff), nil
	case CategoryEdit:
		return layering.Clone(d.Edit), nil
	default:
		return nil, c.Validate()
	}
}

// Overlay returns a document where the present fields of override replace the
// fields of d. Ownership and revision stay with d.
func (d Document) Overlay(override Document) Document {
	out := d.Clone()
	out.General = layering.Merge(override.General, d.General)
	out.Diff = layering.Merge(override.Diff, d.Diff)
	out.Edit = layering.Merge(override.Edit, d.Edit)
	return out
}
