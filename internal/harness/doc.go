// Package harness runs reconciliation scenarios against the engine.
//
// A scenario declares views and template components (inline or in CUE
// files), a list of hosts, and steps that render trees or change component
// state. Every host renders into an in-memory renderer; every committed
// pass is recorded both in the scenario result and in a fresh in-memory
// trace store.
//
// # Scenario Format
//
//	name: keyed_reorder
//	description: "Moving keyed items reuses their nodes"
//	specs:
//	  - views.cue
//	components:
//	  - name: Item
//	    template:
//	      tag: li
//	      props: { id: "$props.id" }
//	      children: [{ text: "$props.id" }]
//	steps:
//	  - render: { view: list_abc }
//	  - render: { view: list_ca }
//	    expect:
//	      snapshot: '<ul><li id="c">c</li><li id="a">a</li></ul>'
//	      ops: { create: 0, remove: 1 }
//	assertions:
//	  - type: op_count
//	    op: create
//	    count: 4
//	  - type: replay
//
// Steps are render (a named view or an inline node), set_state (merge
// state into the first mounted component with that name) and flush.
//
// # Assertion Types
//
//   - snapshot: final output of a host equals a string
//   - op_count: an instruction op was committed exactly N times
//   - call_count: a lifecycle call kind fired exactly N times
//   - call_order: components first receive calls in a given order
//   - stored_rows: rows of a trace store table, filtered by where
//   - replay: the stored trace rebuilds the live output
//
// # Deterministic Testing
//
// Pass ids come from a sequence generator and instruction seqs from the
// engine's logical clock, so the same scenario always yields the same
// trace. RunWithGolden compares it against testdata/golden.
package harness
