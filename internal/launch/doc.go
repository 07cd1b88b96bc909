// Package launch holds the per-run inputs handed over by the pipeline
// launcher: the fixed argument set, the ordered parameter bag, and the run's
// log file. A Run value is passed explicitly to the tracker and lifecycle
// scope; nothing here is process-global.
package launch
