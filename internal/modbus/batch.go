package modbus

import "sort"

// PointRole distinguishes telemetry points (measurements) from signal
// points (status/alarm bits) for the purpose of the polling loop's
// grouping key and TelemetryBatch's two output arrays. It plays no part
// in how a register is decoded.
type PointRole int

const (
	RoleTelemetry PointRole = iota
	RoleSignal
)

// ReadSpec is a single point's read requirement before batching.
type ReadSpec struct {
	PointID  string
	SlaveID  uint8
	Func     uint8
	Role     PointRole
	Address  uint16
	Quantity uint16 // number of 16-bit registers or coil-bits this point occupies
}

// Batch is a single wire request covering one or more ReadSpecs whose
// register ranges were merged.
type Batch struct {
	SlaveID  uint8
	Func     uint8
	Role     PointRole
	Address  uint16
	Quantity uint16
	Specs    []ReadSpec
}

const maxBatchGap = 5

// GroupAndBatch groups specs by (slave_id, function_code, kind), sorts each
// group by address, and merges adjacent points into batches: two points
// merge into the same batch when the gap between the end of one and the
// start of the next is <= maxBatchGap, provided the merged batch's total
// register span does not exceed maxBatchSize.
func GroupAndBatch(specs []ReadSpec, maxBatchSize uint16) []Batch {
	type key struct {
		slave uint8
		fc    uint8
		role  PointRole
	}
	groups := make(map[key][]ReadSpec)
	var order []key
	for _, s := range specs {
		k := key{s.SlaveID, s.Func, s.Role}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}

	var batches []Batch
	for _, k := range order {
		group := groups[k]
		sort.Slice(group, func(i, j int) bool { return group[i].Address < group[j].Address })

		var current *Batch
		for _, s := range group {
			end := s.Address + s.Quantity
			if current == nil {
				current = &Batch{SlaveID: k.slave, Func: k.fc, Role: k.role, Address: s.Address, Quantity: s.Quantity, Specs: []ReadSpec{s}}
				continue
			}
			currentEnd := current.Address + current.Quantity
			gap := int(s.Address) - int(currentEnd)
			mergedSpan := end - current.Address
			if gap >= 0 && gap <= maxBatchGap && mergedSpan <= maxBatchSize {
				current.Quantity = mergedSpan
				current.Specs = append(current.Specs, s)
				continue
			}
			batches = append(batches, *current)
			current = &Batch{SlaveID: k.slave, Func: k.fc, Role: k.role, Address: s.Address, Quantity: s.Quantity, Specs: []ReadSpec{s}}
		}
		if current != nil {
			batches = append(batches, *current)
		}
	}
	return batches
}

// Chunk splits a batch's address range into PDU-sized pieces, each
// spanning at most maxUnits, used when a merged batch exceeds the
// function code's own max read quantity.
func (b Batch) Chunk(maxUnits uint16) []Batch {
	if b.Quantity <= maxUnits {
		return []Batch{b}
	}
	var chunks []Batch
	for offset := uint16(0); offset < b.Quantity; offset += maxUnits {
		span := maxUnits
		if offset+span > b.Quantity {
			span = b.Quantity - offset
		}
		chunks = append(chunks, Batch{
			SlaveID:  b.SlaveID,
			Func:     b.Func,
			Role:     b.Role,
			Address:  b.Address + offset,
			Quantity: span,
		})
	}
	return chunks
}
