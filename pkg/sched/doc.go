// Package sched runs registered automation actions against fast-clock
// ticks and layout object updates.
//
// Actions carry a trigger pattern, an optional condition expression and
// a timeout. Matching and condition evaluation happen synchronously on
// the document-dispatch path and only submit work; the scripts
// themselves run on a bounded worker pool. A single monitor loop polls
// outstanding runs, fires exactly one of OnSuccess or OnError per run,
// and cancels runs past their timeout. Cancellation is cooperative: a
// script that ignores its context keeps running after its OnError has
// already fired.
package sched
