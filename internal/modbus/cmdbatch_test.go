package modbus

import "testing"

// TestScenarioS4WriteBatchMerge covers scenario S4: three consecutive
// register writes to the same slave/FC16 group merge into one PDU plan.
func TestScenarioS4WriteBatchMerge(t *testing.T) {
	key := BatchKey{SlaveID: 1, FunctionCode: 16}
	cmds := []BatchCommand{
		{PointID: "c", SlaveID: 1, FunctionCode: 16, RegisterAddress: 12, RegisterCount: 1, Value: IntegerValue(3)},
		{PointID: "a", SlaveID: 1, FunctionCode: 16, RegisterAddress: 10, RegisterCount: 1, Value: IntegerValue(1)},
		{PointID: "b", SlaveID: 1, FunctionCode: 16, RegisterAddress: 11, RegisterCount: 1, Value: IntegerValue(2)},
	}

	merge, ordered := PlanGroup(key, cmds)
	if !merge {
		t.Fatal("want merge=true for three consecutive FC16 writes")
	}
	if len(ordered) != 3 || ordered[0].PointID != "a" || ordered[1].PointID != "b" || ordered[2].PointID != "c" {
		t.Fatalf("want address-sorted a,b,c got %+v", ordered)
	}
}

// TestPlanGroupSplitsOnGap covers the "any gap starts a new batch" rule:
// a non-consecutive address must not merge, unlike read batching's gap
// tolerance.
func TestPlanGroupSplitsOnGap(t *testing.T) {
	key := BatchKey{SlaveID: 1, FunctionCode: 16}
	cmds := []BatchCommand{
		{PointID: "a", SlaveID: 1, FunctionCode: 16, RegisterAddress: 10, RegisterCount: 1},
		{PointID: "b", SlaveID: 1, FunctionCode: 16, RegisterAddress: 12, RegisterCount: 1}, // gap
	}
	merge, _ := PlanGroup(key, cmds)
	if merge {
		t.Fatal("want merge=false across a register gap")
	}
}

// TestPlanGroupAccountsForRegisterCount covers mixed-width commands in one
// group: a 32-bit write at address 10 occupies registers 10-11, so the
// next command must start at 12 to be considered consecutive.
func TestPlanGroupAccountsForRegisterCount(t *testing.T) {
	key := BatchKey{SlaveID: 1, FunctionCode: 16}
	cmds := []BatchCommand{
		{PointID: "wide", SlaveID: 1, FunctionCode: 16, RegisterAddress: 10, RegisterCount: 2},
		{PointID: "narrow", SlaveID: 1, FunctionCode: 16, RegisterAddress: 12, RegisterCount: 1},
	}
	merge, ordered := PlanGroup(key, cmds)
	if !merge {
		t.Fatalf("want merge=true once register_count is honored, got ordered=%+v", ordered)
	}

	cmds[1].RegisterAddress = 11 // now overlaps the wide command's second register
	merge2, _ := PlanGroup(key, cmds)
	if merge2 {
		t.Fatal("want merge=false when the next address overlaps the prior command's registers")
	}
}

// TestPlanGroupNeverMergesNonFC16 covers the FC restriction: even
// consecutive addresses on FC05/06 must be issued individually.
func TestPlanGroupNeverMergesNonFC16(t *testing.T) {
	key := BatchKey{SlaveID: 1, FunctionCode: 6}
	cmds := []BatchCommand{
		{PointID: "a", SlaveID: 1, FunctionCode: 6, RegisterAddress: 10, RegisterCount: 1},
		{PointID: "b", SlaveID: 1, FunctionCode: 6, RegisterAddress: 11, RegisterCount: 1},
	}
	merge, _ := PlanGroup(key, cmds)
	if merge {
		t.Fatal("want merge=false for function_code != 16")
	}
}

// TestPlanGroupSingleCommandNeverMerges covers the commands.len() > 1
// requirement: a lone FC16 write has nothing to merge with.
func TestPlanGroupSingleCommandNeverMerges(t *testing.T) {
	key := BatchKey{SlaveID: 1, FunctionCode: 16}
	cmds := []BatchCommand{{PointID: "a", SlaveID: 1, FunctionCode: 16, RegisterAddress: 10, RegisterCount: 1}}
	merge, ordered := PlanGroup(key, cmds)
	if merge {
		t.Fatal("want merge=false for a single command")
	}
	if len(ordered) != 1 {
		t.Fatalf("want 1 command returned got %d", len(ordered))
	}
}

func TestCommandBatcherGroupsByKey(t *testing.T) {
	b := NewCommandBatcher(0)
	b.AddCommand(BatchCommand{PointID: "a", SlaveID: 1, FunctionCode: 16, RegisterAddress: 10})
	b.AddCommand(BatchCommand{PointID: "b", SlaveID: 1, FunctionCode: 16, RegisterAddress: 11})
	b.AddCommand(BatchCommand{PointID: "c", SlaveID: 1, FunctionCode: 6, RegisterAddress: 20})
	b.AddCommand(BatchCommand{PointID: "d", SlaveID: 2, FunctionCode: 16, RegisterAddress: 10})

	groups := b.TakeCommands()
	if len(groups) != 3 {
		t.Fatalf("want 3 distinct (slave_id, function_code) groups got %d", len(groups))
	}
	if len(groups[BatchKey{SlaveID: 1, FunctionCode: 16}]) != 2 {
		t.Errorf("want 2 commands in slave=1/fc=16 group")
	}
}

func TestCommandBatcherTakeCommandsDrains(t *testing.T) {
	b := NewCommandBatcher(0)
	b.AddCommand(BatchCommand{PointID: "a", SlaveID: 1, FunctionCode: 6, RegisterAddress: 10})
	if groups := b.TakeCommands(); len(groups) != 1 {
		t.Fatalf("want 1 group on first drain got %d", len(groups))
	}
	if groups := b.TakeCommands(); groups != nil {
		t.Fatalf("want nil on second drain, queue should be empty, got %+v", groups)
	}
}

func TestCommandBatcherShouldExecute(t *testing.T) {
	b := NewCommandBatcher(0)
	if !b.ShouldExecute(false) {
		t.Fatal("want should_execute=true once the (zero) window has elapsed")
	}
	if !b.ShouldExecute(true) {
		t.Fatal("want should_execute=true on explicit force regardless of window")
	}
}
