// Package pipeline provides a framework for executing scan steps in sequence.
//
// The pipeline pattern is used to process a presence-probing run through
// its stages: catalog loading, probing, result aggregation, and
// persistence. Each stage is implemented as a Step that receives the
// current report and can modify it.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It lets cancellation degrade a run to partial results instead of
// discarding work already done
// 4. It enables potential parallelization of independent steps in the future
package pipeline
