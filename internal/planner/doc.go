// Package planner decides which patches a push or pop moves.
//
// The planner is pure: it reads the series and the applied list and
// returns an ordered plan without touching the tree. The engine executes
// the plan one patch at a time.
//
// Key responsibilities:
//   - Build push plans (next, up to a patch, all)
//   - Build pop plans (top, down to a patch, all)
//   - Detect an applied list that does not match the series order
package planner
