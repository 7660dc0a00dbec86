// Package repository loads reference data from MySQL at startup and writes
// the durable record of bookings and cancellations behind the engines.
// Sentinel errors let callers distinguish missing rows from real failures.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")
