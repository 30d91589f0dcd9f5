// Package dataset provides the in-memory tabular structure manipulated by
// every pipeline stage, built on gota dataframes.
//
// A Table is an ordered set of named, homogeneously typed columns with equal
// length. Missing values are represented as NaN cells. Tables are produced by
// the Loader from uploaded CSV/XLSX bytes and mutated in place by the cleaner
// and the column projector; readers (visualizer, report, exporter) never
// modify them.
package dataset
