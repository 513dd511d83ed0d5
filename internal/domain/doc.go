// Package domain defines the core entities of the answer-processing
// pipeline: processors, their question bindings, and the processing
// result records the pipeline creates and drives to a terminal status.
package domain
