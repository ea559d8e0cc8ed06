// Package hierarchy converts raw rows into a forest of records.
//
// Two input shapes are supported:
//
//   - foreign-key mode: every row carries a primary key and a foreign key
//     naming its parent's primary key;
//   - child-data-key mode: every row carries its children inline under a
//     named field.
//
// Exactly one mode is active at a time. The builder never mutates the rows it
// is given.
package hierarchy

import "github.com/vanderheijden86/treegrid/pkg/model"

// Mode is the active input shape.
type Mode int

const (
	ModeForeignKey Mode = iota + 1
	ModeChildDataKey
)

func (m Mode) String() string {
	switch m {
	case ModeForeignKey:
		return "foreign-key"
	case ModeChildDataKey:
		return "child-data-key"
	default:
		return "invalid"
	}
}

// Options is the structural configuration of a hierarchy.
type Options struct {
	PrimaryKey   string
	ForeignKey   string
	ChildDataKey string

	// Identify overrides identity resolution. When it returns ok=false the
	// default rule applies (primary key, or the row object itself in
	// child-data-key mode without a primary key).
	Identify func(model.Row) (model.RowID, bool)
}

// Validate reports a *model.ConfigError when the options do not select
// exactly one usable mode.
func (o Options) Validate() error {
	switch {
	case o.ForeignKey != "" && o.ChildDataKey != "":
		return &model.ConfigError{Reason: "both foreign key and child data key are set"}
	case o.ForeignKey == "" && o.ChildDataKey == "":
		return &model.ConfigError{Reason: "neither foreign key nor child data key is set"}
	case o.ForeignKey != "" && o.PrimaryKey == "":
		return &model.ConfigError{Reason: "foreign key mode requires a primary key"}
	case o.ForeignKey != "" && o.ForeignKey == o.PrimaryKey:
		return &model.ConfigError{Reason: "foreign key and primary key must differ"}
	case o.ChildDataKey != "" && o.ChildDataKey == o.PrimaryKey:
		return &model.ConfigError{Reason: "child data key and primary key must differ"}
	}
	return nil
}

// Mode returns the mode selected by the options. Call Validate first.
func (o Options) Mode() Mode {
	if o.ForeignKey != "" {
		return ModeForeignKey
	}
	return ModeChildDataKey
}

// KeyOf returns the normalized primary key of a row.
func (o Options) KeyOf(row model.Row) (model.RowID, bool) {
	if o.PrimaryKey == "" || row == nil {
		return nil, false
	}
	return model.NormalizeID(row[o.PrimaryKey])
}

// IdentityOf resolves a row's identity under the options.
func (o Options) IdentityOf(row model.Row) (model.RowID, bool) {
	if o.Identify != nil {
		if id, ok := o.Identify(row); ok {
			return id, true
		}
	}
	if o.PrimaryKey != "" {
		return o.KeyOf(row)
	}
	if o.Mode() == ModeChildDataKey && row != nil {
		return model.RefOf(row), true
	}
	return nil, false
}
