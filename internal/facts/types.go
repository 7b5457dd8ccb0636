// Package facts declares the synchronized fact types, their extraction
// queries, and the shape normalizer.
//
// Each fact type carries a fixed, explicitly declared schema. Extraction
// validates query results against it instead of trusting whatever column
// set the query happened to return.
package facts

import (
	"fmt"

	"github.com/tmslabs/factsync/internal/db"
	"github.com/tmslabs/factsync/internal/errors"
)

// Type identifies one synchronization target.
type Type string

const (
	// Order is the per-order fact, one row per order_id.
	Order Type = "fact_order"

	// Delivery is the per-route-stop fact, one row per
	// (route_id, route_detail_id, order_id).
	Delivery Type = "fact_delivery"

	// Both requests Order followed by Delivery in one run. It is a
	// request-level value only; no Spec exists for it.
	Both Type = "both"
)

// LastSyncedColumn is appended by normalization when missing and refreshed
// on every merge.
const LastSyncedColumn = "last_synced"

// Column is one declared fact column with its semantic kind.
type Column struct {
	Name string
	Kind db.Kind
}

// Spec is the full declaration of one fact type: where its rows come from,
// where they land, and which columns identify a row.
type Spec struct {
	Type Type

	// Table is the target table name.
	Table string

	// Keys are the natural-key columns, the merge conflict target.
	Keys []string

	// Columns is the complete target column list, last_synced included.
	Columns []Column
}

// ParseType parses a wire sync_type string, accepting the request-level
// "both". Invalid values are rejected before any background work starts.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Order, Delivery, Both:
		return Type(s), nil
	}
	return "", errors.NewInvalidRequest("sync_type", fmt.Sprintf("unknown value %q", s))
}

// Expand resolves a request-level type into the fact types to process, in
// processing order. Both is strictly Order before Delivery.
func Expand(t Type) []Type {
	if t == Both {
		return []Type{Order, Delivery}
	}
	return []Type{t}
}

// SpecFor returns the spec for a concrete fact type.
func SpecFor(t Type) (Spec, error) {
	switch t {
	case Order:
		return orderSpec, nil
	case Delivery:
		return deliverySpec, nil
	}
	return Spec{}, errors.NewInvalidRequest("sync_type", fmt.Sprintf("no fact spec for %q", t))
}

// ExtractColumns returns the columns extraction must produce: everything
// except last_synced, which normalization appends.
func (s Spec) ExtractColumns() []string {
	out := make([]string, 0, len(s.Columns)-1)
	for _, c := range s.Columns {
		if c.Name == LastSyncedColumn {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

// Kinds returns a column-name to kind lookup for the spec.
func (s Spec) Kinds() map[string]db.Kind {
	m := make(map[string]db.Kind, len(s.Columns))
	for _, c := range s.Columns {
		m[c.Name] = c.Kind
	}
	return m
}

var orderSpec = Spec{
	Type:  Order,
	Table: "fact_order",
	Keys:  []string{"order_id"},
	Columns: []Column{
		{Name: "status", Kind: db.KindText},
		{Name: "manifest_reference", Kind: db.KindText},
		{Name: "order_id", Kind: db.KindText},
		{Name: "manifest_integration_id", Kind: db.KindText},
		{Name: "external_expedition_type", Kind: db.KindText},
		{Name: "driver_name", Kind: db.KindText},
		{Name: "code", Kind: db.KindText},
		{Name: "faktur_date", Kind: db.KindDate},
		{Name: "tms_created", Kind: db.KindTimestamp},
		{Name: "route_created", Kind: db.KindDate},
		{Name: "delivery_date", Kind: db.KindDate},
		{Name: "route_id", Kind: db.KindText},
		{Name: "tms_complete", Kind: db.KindTimestamp},
		{Name: "location_confirmation", Kind: db.KindDate},
		{Name: "faktur_total_quantity", Kind: db.KindDecimal},
		{Name: "tms_total_quantity", Kind: db.KindDecimal},
		{Name: "total_return", Kind: db.KindDecimal},
		{Name: "total_net_value", Kind: db.KindDecimal},
		{Name: "skip_count", Kind: db.KindInteger},
		{Name: LastSyncedColumn, Kind: db.KindTimestamp},
	},
}

var deliverySpec = Spec{
	Type:  Delivery,
	Table: "fact_delivery",
	Keys:  []string{"route_id", "route_detail_id", "order_id"},
	Columns: []Column{
		{Name: "route_id", Kind: db.KindText},
		{Name: "manifest_reference", Kind: db.KindText},
		{Name: "route_detail_id", Kind: db.KindText},
		{Name: "order_id", Kind: db.KindText},
		{Name: "do_number", Kind: db.KindText},
		{Name: "faktur_date", Kind: db.KindDate},
		{Name: "created_date_only", Kind: db.KindDate},
		{Name: "waktu", Kind: db.KindText},
		{Name: "delivery_date", Kind: db.KindDate},
		{Name: "status", Kind: db.KindText},
		{Name: "client_id", Kind: db.KindText},
		{Name: "warehouse_id", Kind: db.KindText},
		{Name: "origin_name", Kind: db.KindText},
		{Name: "origin_city", Kind: db.KindText},
		{Name: "customer_id", Kind: db.KindText},
		{Name: "code", Kind: db.KindText},
		{Name: "name", Kind: db.KindText},
		{Name: "address", Kind: db.KindText},
		{Name: "address_text", Kind: db.KindText},
		{Name: "external_expedition_type", Kind: db.KindText},
		{Name: "vehicle_id", Kind: db.KindText},
		{Name: "driver_id", Kind: db.KindText},
		{Name: "plate_number", Kind: db.KindText},
		{Name: "driver_name", Kind: db.KindText},
		{Name: "kenek_id", Kind: db.KindText},
		{Name: "kenek_name", Kind: db.KindText},
		{Name: "driver_status", Kind: db.KindText},
		{Name: "manifest_integration_id", Kind: db.KindText},
		{Name: "complete_time", Kind: db.KindTimestamp},
		{Name: "net_price", Kind: db.KindDecimal},
		{Name: "quantity_delivery", Kind: db.KindDecimal},
		{Name: "quantity_faktur", Kind: db.KindDecimal},
		{Name: "skip_count", Kind: db.KindInteger},
		{Name: LastSyncedColumn, Kind: db.KindTimestamp},
	},
}
