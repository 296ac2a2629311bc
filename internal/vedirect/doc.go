// Package vedirect decodes the Victron VE.Direct Text protocol.
//
// Devices send a frame of LABEL<TAB>VALUE lines about once a second. The
// last field is labelled Checksum and carries a single raw byte chosen so
// that all bytes of the frame add up to zero modulo 256.
//
// A Parser is fed arbitrary chunks of the serial stream and returns one
// Result per frame: a Record for a valid frame, or a *FrameError. Records
// are BatteryMonitor, SolarCharger, Inverter or Generic, depending on the
// product ID. HEX protocol messages in the stream are skipped.
package vedirect
