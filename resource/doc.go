// Package resource bounds what sample loading may consume: decoded bytes held
// in memory, concurrent blob reads, and read throughput from remote stores.
//
// A nil *Controller imposes no limits.
package resource
