// Package rate throttles repeated failed logins from one device.
//
// Counters are fixed windows: INCR plus EXPIRE on the first hit. Keys live
// under "<prefix>:throttle:login:<email>" next to the credential keys, so a
// logout does not reset them.
package rate
