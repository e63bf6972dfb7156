package cluster

import "errors"

var (
	// ErrNoNode is returned when no connected node accepts a guild.
	ErrNoNode = errors.New("unable to find appropriate node; please check your filter")
)
