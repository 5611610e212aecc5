// Package qdmr parses and renders QDMR decompositions.
//
// A decomposition is a ";"-separated list of clauses, each prefixed by the
// marker "return":
//
//	return objects ;return #1 that are green ;return number of #2
//
// Each clause becomes a Step with a closed Operator tag and a positional
// argument list. Steps refer to earlier steps with whole-token "#k"
// references (1-based), so a Program is a DAG whose edges always point
// backward.
//
// Programs are immutable. Operations that change a program return a new
// Program that shares every untouched *Step with its source.
//
// This package depends only on the standard library.
package qdmr
