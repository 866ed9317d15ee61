package modbus

import "testing"

func TestGroupAndBatchMergesAdjacent(t *testing.T) {
	specs := []ReadSpec{
		{SlaveID: 1, Func: FuncReadHoldingRegisters, Role: RoleTelemetry, Address: 0, Quantity: 1},
		{SlaveID: 1, Func: FuncReadHoldingRegisters, Role: RoleTelemetry, Address: 1, Quantity: 1},
		{SlaveID: 1, Func: FuncReadHoldingRegisters, Role: RoleTelemetry, Address: 2, Quantity: 1},
	}
	batches := GroupAndBatch(specs, 125)
	if len(batches) != 1 {
		t.Fatalf("want 1 batch got %d", len(batches))
	}
	if batches[0].Address != 0 || batches[0].Quantity != 3 {
		t.Errorf("want addr=0 qty=3 got addr=%d qty=%d", batches[0].Address, batches[0].Quantity)
	}
}

func TestGroupAndBatchRespectsGapTolerance(t *testing.T) {
	specs := []ReadSpec{
		{SlaveID: 1, Func: FuncReadHoldingRegisters, Role: RoleTelemetry, Address: 0, Quantity: 1},
		{SlaveID: 1, Func: FuncReadHoldingRegisters, Role: RoleTelemetry, Address: 10, Quantity: 1}, // gap 9 > 5
	}
	batches := GroupAndBatch(specs, 125)
	if len(batches) != 2 {
		t.Fatalf("want 2 batches got %d", len(batches))
	}
}

func TestGroupAndBatchRespectsMaxSize(t *testing.T) {
	specs := []ReadSpec{
		{SlaveID: 1, Func: FuncReadHoldingRegisters, Role: RoleTelemetry, Address: 0, Quantity: 100},
		{SlaveID: 1, Func: FuncReadHoldingRegisters, Role: RoleTelemetry, Address: 100, Quantity: 50},
	}
	batches := GroupAndBatch(specs, 125)
	if len(batches) != 2 {
		t.Fatalf("want 2 batches (merge would exceed max) got %d", len(batches))
	}
}

func TestGroupAndBatchSeparatesBySlaveAndFunc(t *testing.T) {
	specs := []ReadSpec{
		{SlaveID: 1, Func: FuncReadHoldingRegisters, Role: RoleTelemetry, Address: 0, Quantity: 1},
		{SlaveID: 2, Func: FuncReadHoldingRegisters, Role: RoleTelemetry, Address: 0, Quantity: 1},
		{SlaveID: 1, Func: FuncReadInputRegisters, Role: RoleTelemetry, Address: 0, Quantity: 1},
	}
	batches := GroupAndBatch(specs, 125)
	if len(batches) != 3 {
		t.Fatalf("want 3 batches got %d", len(batches))
	}
}

func TestGroupAndBatchSeparatesByRole(t *testing.T) {
	specs := []ReadSpec{
		{SlaveID: 1, Func: FuncReadHoldingRegisters, Role: RoleTelemetry, Address: 0, Quantity: 1},
		{SlaveID: 1, Func: FuncReadHoldingRegisters, Role: RoleSignal, Address: 1, Quantity: 1},
	}
	batches := GroupAndBatch(specs, 125)
	if len(batches) != 2 {
		t.Fatalf("want 2 batches (different roles never merge) got %d", len(batches))
	}
}

func TestBatchChunk(t *testing.T) {
	b := Batch{SlaveID: 1, Func: FuncReadHoldingRegisters, Address: 0, Quantity: 300}
	chunks := b.Chunk(125)
	if len(chunks) != 3 {
		t.Fatalf("want 3 chunks got %d", len(chunks))
	}
	if chunks[0].Address != 0 || chunks[0].Quantity != 125 {
		t.Errorf("chunk0: %+v", chunks[0])
	}
	if chunks[2].Address != 250 || chunks[2].Quantity != 50 {
		t.Errorf("chunk2: %+v", chunks[2])
	}
}
