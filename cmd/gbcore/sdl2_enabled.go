//go:build sdl2

package main

import "github.com/pocketdmg/gbcore/backend"

func newSDL2Backend() (backend.Backend, error) {
	return backend.NewSDL2(), nil
}
