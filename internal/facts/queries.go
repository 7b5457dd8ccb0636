package facts

import "time"

// Window is an inclusive calendar-date bound on the fact's primary date
// column. Zero values mean "use the default": From falls back to the
// configured historical epoch, To to today at extraction time.
type Window struct {
	From time.Time
	To   time.Time
}

// Resolve applies defaults. The upper bound is re-evaluated on every run,
// never cached. Bounds reduce to the calendar date in the value's own
// location, so "today" stays today east of UTC.
func (w Window) Resolve(defaultFrom time.Time, now time.Time) (time.Time, time.Time) {
	from := w.From
	if from.IsZero() {
		from = defaultFrom
	}
	to := w.To
	if to.IsZero() {
		to = now
	}
	return dateOnly(from), dateOnly(to)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// query returns the extraction SQL for a fact type. Date bounds are always
// bound parameters with typed date arguments; caller-controlled values are
// never interpolated into the text.
func (s Spec) query() string {
	switch s.Type {
	case Order:
		return orderQuery
	case Delivery:
		return deliveryQuery
	}
	return ""
}

// Orders aggregate detail rows up to one row per order_id; when duplicate
// header rows exist upstream, DISTINCT ON with the date-descending sort
// keeps the most recently dated one. Sentinel dates outside the plausible
// calendar range are nulled in-query so they never reach the target's date
// columns.
const orderQuery = `
SELECT DISTINCT ON (a.order_id)
  a.status,
  c.manifest_reference,
  a.order_id,
  c.manifest_integration_id,
  c.external_expedition_type,
  d.driver_name,
  e.code,
  a.faktur_date,
  a.created_date AS tms_created,
  CASE WHEN c.created_date IS NOT NULL THEN c.created_date::DATE ELSE NULL END AS route_created,
  CASE WHEN a.delivery_date IS NOT NULL AND a.delivery_date >= '1900-01-01'::date AND a.delivery_date <= '2100-12-31'::date THEN a.delivery_date ELSE NULL END AS delivery_date,
  c.route_id,
  a.updated_date AS tms_complete,
  CASE WHEN g.location_confirmation_timestamp IS NOT NULL AND g.location_confirmation_timestamp >= '1900-01-01'::timestamp AND g.location_confirmation_timestamp <= '2100-12-31'::timestamp THEN g.location_confirmation_timestamp::DATE ELSE NULL END AS location_confirmation,
  SUM(od.quantity_faktur)::NUMERIC(15,2) AS faktur_total_quantity,
  SUM(od.quantity_delivery)::NUMERIC(15,2) AS tms_total_quantity,
  (SUM(od.quantity_delivery) - SUM(od.quantity_unloading))::NUMERIC(15,2) AS total_return,
  SUM(od.net_price)::NUMERIC(15,2) AS total_net_value,
  a.skip_count
FROM "public"."order" AS a
LEFT JOIN "public"."route_detail" AS b ON b.order_id = a.order_id
LEFT JOIN "public"."route" AS c ON c.route_id = b.route_id
LEFT JOIN "public"."dma_driver" AS d ON d.driver_id = c.driver_id
LEFT JOIN "public"."mst_vehicle" AS e ON e.mst_vehicle_id = c.vehicle_id
LEFT JOIN "public"."driver_tasks" AS f ON f.order_id = a.order_id
LEFT JOIN "public"."driver_task_confirmations" AS g ON g.driver_task_id = f.driver_task_id
LEFT JOIN "public"."order_detail" AS od ON od.order_id = a.order_id
WHERE a.faktur_date >= $1 AND a.faktur_date <= $2
GROUP BY a.status, c.manifest_reference, a.order_id, c.manifest_integration_id, c.external_expedition_type, d.driver_name, e.code, a.faktur_date, a.created_date, c.created_date, a.delivery_date, c.route_id, a.updated_date, g.location_confirmation_timestamp, a.skip_count
ORDER BY a.order_id, a.faktur_date DESC
`

// Deliveries aggregate order detail up to one row per route stop.
const deliveryQuery = `
SELECT
  a.route_id,
  a.manifest_reference,
  b.route_detail_id,
  b.order_id,
  c.do_number,
  c.faktur_date,
  DATE(a.created_date) AS created_date_only,
  a.created_date::TIMESTAMP::TIME AS waktu,
  CASE WHEN c.delivery_date IS NOT NULL AND c.delivery_date >= '1900-01-01'::date AND c.delivery_date <= '2100-12-31'::date THEN c.delivery_date ELSE NULL END AS delivery_date,
  a.status,
  c.client_id,
  c.warehouse_id,
  c.origin_name,
  c.origin_city,
  c.customer_id,
  e.code,
  e."name",
  d.address,
  d.address_text,
  a.external_expedition_type,
  a.vehicle_id,
  a.driver_id,
  f.plate_number,
  g.driver_name,
  a.kenek_id,
  h.kenek_name,
  a.driver_status,
  a.manifest_integration_id,
  i.complete_time,
  SUM(j.net_price)::NUMERIC(15,2) AS net_price,
  SUM(j.quantity_delivery)::NUMERIC(15,2) AS quantity_delivery,
  SUM(j.quantity_faktur)::NUMERIC(15,2) AS quantity_faktur,
  c.skip_count
FROM public.route AS a
LEFT JOIN public.route_detail AS b ON b.route_id = a.route_id
LEFT JOIN public."order" AS c ON c.order_id = b.order_id
LEFT JOIN public.mst_location_child AS d ON d.mst_location_child_id = c.customer_id
LEFT JOIN public.mst_location_parent AS e ON e.mst_location_parent_id = d.mst_location_parent_id
LEFT JOIN public.mst_vehicle AS f ON f.mst_vehicle_id = a.vehicle_id
LEFT JOIN public.dma_driver AS g ON g.driver_id = a.driver_id
LEFT JOIN public.dma_kenek AS h ON h.kenek_id = a.kenek_id
LEFT JOIN public.driver_tasks AS i ON i.order_id = b.order_id
LEFT JOIN public.order_detail AS j ON j.order_id = b.order_id
WHERE c.faktur_date >= $1 AND c.faktur_date <= $2
GROUP BY a.route_id, a.manifest_reference, b.route_detail_id, b.order_id, c.do_number, c.faktur_date, a.created_date, a.status, c.client_id, c.warehouse_id, c.origin_name, c.origin_city, c.customer_id, e.code, e."name", d.address, d.address_text, a.external_expedition_type, a.vehicle_id, a.driver_id, f.plate_number, g.driver_name, a.kenek_id, h.kenek_name, a.driver_status, a.manifest_integration_id, i.complete_time, c.delivery_date, c.skip_count
`
