//go:build !sdl2

package main

import (
	"errors"

	"github.com/pocketdmg/gbcore/backend"
)

func newSDL2Backend() (backend.Backend, error) {
	return nil, errors.New("sdl2 backend not available: rebuild with -tags sdl2")
}
