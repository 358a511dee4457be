package loan

// =============================================================================
// LEGACY NORMALIZATION
// =============================================================================

// Older write paths copied the return status into warehouseStatus.status,
// which made a loan look returned to the warehouse rule even after the
// return was rejected. The true hand-out state survives in
// returnStatus.previousStatus; Normalize puts it back.
//
// Normalize never mutates its argument. The returned loan shares slices
// with l but owns fresh WarehouseStatus and ReturnStatus values.
func Normalize(l *Loan) (*Loan, []Warning) {
	if l == nil {
		return nil, nil
	}
	out := *l
	if l.WarehouseStatus != nil {
		ws := *l.WarehouseStatus
		out.WarehouseStatus = &ws
	}
	if l.ReturnStatus != nil {
		rs := *l.ReturnStatus
		out.ReturnStatus = &rs
	}

	ws, rs := out.WarehouseStatus, out.ReturnStatus
	if ws == nil || rs == nil || ws.Status == "" {
		return &out, nil
	}
	if fold(ws.Status) != fold(rs.Status) {
		return &out, nil
	}
	if rs.PreviousStatus == "" {
		// Nothing better is known. Keep the warehouse token so the history
		// still records where the overlap came from.
		rs.PreviousStatus = ws.Status
		return &out, nil
	}

	prior := rs.PreviousStatus
	_, returnToken := ReturnRequestStatus(prior).Normalize()
	if _, known := warehouseStatus(prior); returnToken || !known {
		// previousStatus holds a return-thread token ("accepted", "rejected").
		// A return only exists for handed-out equipment.
		prior = string(StatusBorrowed)
	}
	w := Warning{
		Code:    WarnStatusOverlap,
		Field:   "warehouseStatus.status",
		Value:   ws.Status,
		Message: "warehouse status mirrors return status; treating " + prior + " as the hand-out state",
	}
	ws.Status = prior
	return &out, []Warning{w}
}
