// Package plan defines the declarative description of a phantom: the
// volume parameters and the ordered list of shapes drawn into it.
// A Plan is produced by the Lisp engine or the JSON loader and consumed by
// the voxelizer. All lengths are millimetres and all angles degrees.
package plan
