package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"groundtruth/internal/app/store"
	"groundtruth/internal/rpcwire"
	"groundtruth/pkg/platform/sentinel"
)

type colKind int

const (
	colText colKind = iota
	colInt
	colMoney
	colRef
)

type column struct {
	name     string
	kind     colKind
	required bool
}

// resource maps one RPC router onto one table. Columns listed here are the
// writable surface; everything else in a payload is rejected. Constraints
// the app does not pre-check (tasks.title, tasks.assigned_to) still exist
// in the schema and fail at the database with the driver's own words.
type resource struct {
	router  string
	table   string
	columns []column
}

func defaultResources() map[string]*resource {
	list := []*resource{
		{router: "customers", table: "customers", columns: []column{
			{name: "name", required: true},
			{name: "email"},
			{name: "phone"},
			{name: "status"},
		}},
		{router: "orders", table: "orders", columns: []column{
			{name: "customer_id", kind: colRef, required: true},
			{name: "order_number", required: true},
			{name: "status"},
		}},
		{router: "orderItems", table: "order_items", columns: []column{
			{name: "order_id", kind: colRef, required: true},
			{name: "description"},
			{name: "quantity", kind: colInt},
			{name: "unit_price", kind: colMoney},
		}},
		{router: "invoices", table: "invoices", columns: []column{
			{name: "order_id", kind: colRef, required: true},
			{name: "invoice_number", required: true},
			{name: "amount", kind: colMoney},
			{name: "status"},
		}},
		{router: "productionOrders", table: "production_orders", columns: []column{
			{name: "order_id", kind: colRef, required: true},
			{name: "reference", required: true},
			{name: "quantity", kind: colInt},
			{name: "status"},
		}},
		{router: "shipments", table: "shipments", columns: []column{
			{name: "order_id", kind: colRef, required: true},
			{name: "tracking_number", required: true},
			{name: "carrier"},
			{name: "status"},
		}},
		{router: "paymentAllocations", table: "payment_allocations", columns: []column{
			{name: "invoice_id", kind: colRef, required: true},
			{name: "amount", kind: colMoney},
		}},
		{router: "tasks", table: "tasks", columns: []column{
			{name: "title"},
			{name: "status"},
			{name: "assigned_to", kind: colRef},
		}},
		{router: "users", table: "users", columns: []column{
			{name: "name", required: true},
			{name: "email", required: true},
			{name: "password", required: true},
			{name: "role"},
		}},
	}
	out := make(map[string]*resource, len(list))
	for _, res := range list {
		out[res.router] = res
	}
	return out
}

// inputError is a request the handlers refuse before it reaches storage.
type inputError struct {
	code    string
	message string
}

func (e *inputError) Error() string { return e.message }

// buildValues validates and coerces a payload against the resource's
// columns. With partial set, required columns may be absent (updates). An
// explicit null passes through so the database's own NOT NULL can answer.
func (res *resource) buildValues(input map[string]any, partial bool) (map[string]any, error) {
	byName := make(map[string]column, len(res.columns))
	for _, c := range res.columns {
		byName[c.name] = c
	}

	values := make(map[string]any, len(input))
	for key, v := range input {
		col, ok := byName[key]
		if !ok {
			return nil, &inputError{rpcwire.CodeBadRequest, fmt.Sprintf("unknown field %q", key)}
		}
		if v == nil {
			values[key] = nil
			continue
		}
		switch col.kind {
		case colMoney:
			cents, err := store.ParseCents(v)
			if err != nil {
				return nil, &inputError{rpcwire.CodeUnprocessable, fmt.Sprintf("invalid amount for %q", key)}
			}
			values[key] = store.FormatCents(cents)
		case colInt:
			n, err := toWholeNumber(v)
			if err != nil {
				return nil, &inputError{rpcwire.CodeUnprocessable, fmt.Sprintf("invalid integer for %q", key)}
			}
			values[key] = n
		case colRef:
			s, ok := v.(string)
			if !ok || uuid.Validate(s) != nil {
				return nil, &inputError{rpcwire.CodeUnprocessable, fmt.Sprintf("invalid id for %q", key)}
			}
			values[key] = s
		default:
			s, ok := v.(string)
			if !ok {
				return nil, &inputError{rpcwire.CodeUnprocessable, fmt.Sprintf("invalid value for %q", key)}
			}
			values[key] = s
		}
	}

	if !partial {
		for _, col := range res.columns {
			if col.required {
				if _, present := values[col.name]; !present {
					return nil, &inputError{rpcwire.CodeBadRequest, fmt.Sprintf("%s is required", col.name)}
				}
			}
		}
	}
	return values, nil
}

func toWholeNumber(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		n := int64(t)
		if float64(n) != t {
			return 0, fmt.Errorf("fractional value %v", t)
		}
		return n, nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	default:
		return 0, fmt.Errorf("unsupported value %T", v)
	}
}

// handleRPC dispatches /api/rpc/<router>.<procedure>.
func (a *App) handleRPC(w http.ResponseWriter, r *http.Request) {
	full := chi.URLParam(r, "procedure")
	routerName, proc, ok := strings.Cut(full, ".")
	if !ok {
		rpcwire.WriteError(w, rpcwire.CodeNotFound, fmt.Sprintf("Unknown procedure %q", full))
		return
	}
	if routerName == "auth" {
		a.handleAuth(w, r, proc)
		return
	}

	res, ok := a.resources[routerName]
	if !ok {
		rpcwire.WriteError(w, rpcwire.CodeNotFound, fmt.Sprintf("Unknown router %q", routerName))
		return
	}

	claims := identityFrom(r.Context())
	if claims == nil {
		rpcwire.WriteError(w, rpcwire.CodeUnauthorized, "Authentication required")
		return
	}

	switch proc {
	case "get", "list":
		if r.Method != http.MethodGet {
			rpcwire.WriteError(w, rpcwire.CodeBadRequest, fmt.Sprintf("%s.%s is a query, use GET", routerName, proc))
			return
		}
		if proc == "get" {
			a.handleGet(w, r, res)
		} else {
			a.handleList(w, r, res)
		}
	case "create", "update", "delete":
		if r.Method != http.MethodPost {
			rpcwire.WriteError(w, rpcwire.CodeBadRequest, fmt.Sprintf("%s.%s is a mutation, use POST", routerName, proc))
			return
		}
		if !writeAllowed(claims.Role, res.table) {
			rpcwire.WriteError(w, rpcwire.CodeForbidden,
				fmt.Sprintf("Role %q may not modify %s", claims.Role, res.table))
			return
		}
		switch proc {
		case "create":
			a.handleCreate(w, r, res)
		case "update":
			a.handleUpdate(w, r, res)
		case "delete":
			a.handleDelete(w, r, res)
		}
	default:
		rpcwire.WriteError(w, rpcwire.CodeNotFound, fmt.Sprintf("Unknown procedure %q", full))
	}
}

// writeAllowed: viewers never write, and only admins manage accounts.
func writeAllowed(role, table string) bool {
	if role == "viewer" {
		return false
	}
	if table == "users" {
		return role == "admin"
	}
	return true
}

func (a *App) handleGet(w http.ResponseWriter, r *http.Request, res *resource) {
	var in struct {
		ID string `json:"id"`
	}
	if err := rpcwire.ReadInput(r, &in); err != nil {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, err.Error())
		return
	}
	if in.ID == "" {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, "id is required")
		return
	}
	if uuid.Validate(in.ID) != nil {
		rpcwire.WriteError(w, rpcwire.CodeNotFound, "Record not found")
		return
	}

	row, err := a.store.Get(r.Context(), res.table, in.ID)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	rpcwire.WriteResult(w, http.StatusOK, sanitizeRow(res.table, row))
}

func (a *App) handleList(w http.ResponseWriter, r *http.Request, res *resource) {
	in := struct {
		Limit int `json:"limit"`
	}{Limit: 50}
	if err := rpcwire.ReadInput(r, &in); err != nil {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, err.Error())
		return
	}
	if in.Limit <= 0 || in.Limit > 200 {
		in.Limit = 50
	}

	rows, err := a.store.List(r.Context(), res.table, in.Limit)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = sanitizeRow(res.table, row)
	}
	rpcwire.WriteResult(w, http.StatusOK, out)
}

func (a *App) handleCreate(w http.ResponseWriter, r *http.Request, res *resource) {
	input := map[string]any{}
	if err := rpcwire.ReadInput(r, &input); err != nil {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, err.Error())
		return
	}

	values, err := res.buildValues(input, false)
	if err != nil {
		a.writeInputError(w, err)
		return
	}
	if res.table == "users" {
		if err := hashUserPassword(values); err != nil {
			rpcwire.WriteError(w, rpcwire.CodeUnprocessable, err.Error())
			return
		}
	}

	row, err := a.store.Insert(r.Context(), res.table, values)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	if res.table == "order_items" {
		if orderID, ok := row["order_id"].(string); ok {
			if err := a.store.RecomputeOrderTotal(r.Context(), orderID); err != nil {
				a.writeStoreError(w, err)
				return
			}
		}
	}
	rpcwire.WriteResult(w, http.StatusOK, sanitizeRow(res.table, row))
}

func (a *App) handleUpdate(w http.ResponseWriter, r *http.Request, res *resource) {
	input := map[string]any{}
	if err := rpcwire.ReadInput(r, &input); err != nil {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, err.Error())
		return
	}
	id, _ := input["id"].(string)
	delete(input, "id")
	if id == "" {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, "id is required")
		return
	}
	if uuid.Validate(id) != nil {
		rpcwire.WriteError(w, rpcwire.CodeNotFound, "Record not found")
		return
	}
	if len(input) == 0 {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, "no fields to update")
		return
	}

	values, err := res.buildValues(input, true)
	if err != nil {
		a.writeInputError(w, err)
		return
	}
	if res.table == "users" {
		if _, ok := values["password"]; ok {
			if err := hashUserPassword(values); err != nil {
				rpcwire.WriteError(w, rpcwire.CodeUnprocessable, err.Error())
				return
			}
		}
	}

	row, err := a.store.Update(r.Context(), res.table, id, values)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	if res.table == "order_items" {
		if orderID, ok := row["order_id"].(string); ok {
			if err := a.store.RecomputeOrderTotal(r.Context(), orderID); err != nil {
				a.writeStoreError(w, err)
				return
			}
		}
	}
	rpcwire.WriteResult(w, http.StatusOK, sanitizeRow(res.table, row))
}

func (a *App) handleDelete(w http.ResponseWriter, r *http.Request, res *resource) {
	var in struct {
		ID string `json:"id"`
	}
	if err := rpcwire.ReadInput(r, &in); err != nil {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, err.Error())
		return
	}
	if in.ID == "" {
		rpcwire.WriteError(w, rpcwire.CodeBadRequest, "id is required")
		return
	}
	if uuid.Validate(in.ID) != nil {
		rpcwire.WriteError(w, rpcwire.CodeNotFound, "Record not found")
		return
	}

	// Order items adjust their order's total, so remember the parent
	// before the row disappears.
	var orderID string
	if res.table == "order_items" {
		if row, err := a.store.Get(r.Context(), res.table, in.ID); err == nil {
			orderID, _ = row["order_id"].(string)
		}
	}

	if err := a.store.Delete(r.Context(), res.table, in.ID); err != nil {
		a.writeStoreError(w, err)
		return
	}
	if orderID != "" {
		if err := a.store.RecomputeOrderTotal(r.Context(), orderID); err != nil {
			a.writeStoreError(w, err)
			return
		}
	}
	rpcwire.WriteResult(w, http.StatusOK, map[string]any{"id": in.ID})
}

// hashUserPassword swaps the virtual password field for its stored hash.
func hashUserPassword(values map[string]any) error {
	raw, _ := values["password"].(string)
	delete(values, "password")
	hash, err := hashPassword(raw)
	if err != nil {
		return err
	}
	values["password_hash"] = hash
	return nil
}

// sanitizeRow strips columns that must never leave the server.
func sanitizeRow(table string, row map[string]any) map[string]any {
	if table != "users" {
		return row
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		if k == "password_hash" {
			continue
		}
		out[k] = v
	}
	return out
}

func (a *App) writeInputError(w http.ResponseWriter, err error) {
	var ie *inputError
	if errors.As(err, &ie) {
		rpcwire.WriteError(w, ie.code, ie.message)
		return
	}
	rpcwire.WriteError(w, rpcwire.CodeBadRequest, err.Error())
}

func (a *App) writeStoreError(w http.ResponseWriter, err error) {
	var cv *store.ConstraintViolation
	switch {
	case errors.As(err, &cv):
		code := rpcwire.CodeConflict
		if cv.SQLState == "23502" {
			code = rpcwire.CodeBadRequest
		}
		rpcwire.WriteErrorData(w, code, cv.Message, rpcwire.ErrorData{
			SQLState:   cv.SQLState,
			Constraint: cv.Constraint,
			Table:      cv.Table,
		})
	case errors.Is(err, sentinel.ErrNotFound):
		rpcwire.WriteError(w, rpcwire.CodeNotFound, "Record not found")
	default:
		a.logger.Error("store failure", "error", err)
		rpcwire.WriteError(w, rpcwire.CodeInternal, "Internal error")
	}
}
