// Package channel classifies channel names. Classification is a pure
// function of the name; no channel state exists until a first join.
package channel

import "strings"

type Class int

const (
	Public Class = iota
	Private
	Presence
)

const (
	privatePrefix  = "private-"
	presencePrefix = "presence-"
)

func Classify(name string) Class {
	switch {
	case strings.HasPrefix(name, presencePrefix):
		return Presence
	case strings.HasPrefix(name, privatePrefix):
		return Private
	default:
		return Public
	}
}

// Restricted reports whether joining requires identity or an
// authorization grant.
func (c Class) Restricted() bool {
	return c == Private || c == Presence
}

func (c Class) String() string {
	switch c {
	case Private:
		return "private"
	case Presence:
		return "presence"
	default:
		return "public"
	}
}
