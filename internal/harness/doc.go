// Package harness runs scripted sessions against an in-process engine.
//
// A scenario builds a world, plays a flow of session events and clock
// steps through Engine.Apply and Engine.Tick, then checks assertions on
// the final world, the step trace and the journal. Nothing runs on a
// timer: collision clears only come due when a step advances the manual
// scheduler, so every run of a scenario produces the same trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: pick_and_release
//	description: "A picked crate is released"
//	scene: default            # optional: default, or a scene file path
//	bodies:                   # optional extra bodies
//	  - {shape: rectangle, x: 100, y: 100, width: 40, height: 40, material: heavy, name: Square}
//	flow:
//	  - action: connect
//	    connection: c1
//	    participant: alice
//	  - action: pick
//	    connection: c1
//	    at: {x: 100, y: 100}
//	  - action: tick
//	    count: 3
//	  - action: advance
//	    duration: 200ms
//	  - action: release
//	    connection: c1
//	    expect: {outcome: ok}
//	assertions:
//	  - type: pick_count
//	    count: 0
//	  - type: journal
//	    kind: connect
//	    count: 1
//
// # Golden Files
//
// RunWithGolden compares the trace against testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
