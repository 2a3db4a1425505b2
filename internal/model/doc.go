// Package model holds the value types shared by the calendar client and the
// agenda engine: calendar dates, raw events as delivered by the Calendar API,
// and the derived per-day entries that make up an agenda index.
package model
