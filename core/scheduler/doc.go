package scheduler

// Package scheduler decides when the battery charges from the grid or
// solar surplus and when it discharges into house load, minimizing cost
// over the spot price horizon. It ships two interchangeable planners: a
// greedy heuristic that pairs cheap charge slots with expensive discharge
// needs, and a linear program solved through the Solver port. The LP is
// exact but may fail softly (nil strategy); the heuristic is the required
// fallback and cannot fail on valid input.
