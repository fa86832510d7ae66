// Package engine reconciles def trees into ordered instruction logs.
//
// A render starts at a Boundary. The boundary's component returns a def
// tree, the pairing walk matches it against what the boundary rendered last
// time, and the commit builder walks the resulting pairs in tree order,
// emitting create/update/content/move/swap/remove instructions and
// recursing into child boundaries. Nothing touches a renderer during that
// walk: instructions accumulate per host in the Scheduler and are committed
// in a render pass, after which lifecycle calls fire.
//
// Content handed to a component is carried by a Closure. The component
// grounds it with a pass def wherever it chooses, possibly in several
// places (one true pass, the rest copies) or not at all. Portals feed
// content into a named Stream whose best source is grounded at every
// stream pass.
//
// Ordering:
//
//   - Instructions and calls are stamped from a logical Clock, never from
//     wall time, so traces of the same input are identical.
//   - Pending boundaries update ancestors first, siblings in declared order.
//   - Host logs are committed in the order hosts first received output.
//
// Errors from render functions, hooks and renderers abort the pass and are
// returned as *PassError. Nothing is rolled back: instructions emitted
// before the failure are committed with the next render pass.
package engine
