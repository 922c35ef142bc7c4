// Package model maintains the live registry of layout objects decoded
// from server documents: locomotives, blocks, switches, signals,
// feedback sensors, outputs and routes.
//
// Each object kind is a typed struct with a fixed field set plus an
// Extra map catching server attributes this client does not know about.
// Objects expose thin command methods that format the server's XML
// templates; local state is only updated when the server echoes the
// change back.
//
// The connection's reader goroutine is the model's single writer. The
// model raises two narrow signals consumed by the scheduler: a clock
// handler fired on every clock document and an object handler fired
// when an update mutates a tracked object.
package model
