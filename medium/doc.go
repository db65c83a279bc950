// Package medium simulates a shared broadcast medium in memory.
//
// Stations attach to an Air and each one owns a mesh.Transport whose host is
// the station itself. Advertisements are queued on the Air and heard by every
// other attached station when the Air is stepped. Time is driven by a manual
// clock shared by all stations, which makes retry and expiry behavior
// reproducible in tests and examples.
//
// Each advertisement is heard once per Step, whatever its duration. Frame loss
// can be simulated with WithLoss.
//
// An Air and its stations must be driven from a single goroutine.
package medium
