//go:build !linux && !darwin

package scanner

func lowerPriority() error { return nil }
