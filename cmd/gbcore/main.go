// Command gbcore runs the DMG emulation core against a ROM file, either
// interactively (terminal or, built with -tags sdl2, a real window) or
// headlessly for batch/scripted runs.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/pocketdmg/gbcore/backend"
	"github.com/pocketdmg/gbcore/gbcore"
)

func main() {
	app := cli.NewApp()
	app.Name = "gbcore"
	app.Usage = "gbcore [options] <ROM file>"
	app.Description = "A DMG (original Game Boy) emulator core with terminal and SDL2 front ends"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "rom", Usage: "Path to the ROM file"},
		cli.BoolFlag{Name: "headless", Usage: "Run without a graphical interface"},
		cli.IntFlag{Name: "frames", Usage: "Frames to run in headless mode (0 = unlimited)", Value: 0},
		cli.BoolFlag{Name: "sdl2", Usage: "Use the SDL2 backend instead of the terminal (requires building with -tags sdl2)"},
		cli.BoolFlag{Name: "skip-header-checks", Usage: "Skip cartridge logo/checksum validation"},
		cli.StringFlag{Name: "palette", Usage: "Color palette: grey or green", Value: "grey"},
		cli.StringFlag{Name: "sram", Usage: "Path to a battery RAM file to load at start and save on exit"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("gbcore exited with error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	romBytes, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("reading ROM: %w", err)
	}

	sramPath := c.String("sram")
	var sramBytes []byte
	if sramPath != "" {
		if b, err := os.ReadFile(sramPath); err == nil {
			sramBytes = b
		}
	}

	opts := gbcore.Options{
		SkipHeaderChecks: c.Bool("skip-header-checks"),
		Palette:          resolvePalette(c.String("palette")),
	}

	core, loadErr := gbcore.New(romBytes, sramBytes, opts)
	if loadErr != nil {
		return loadErr
	}

	if c.Bool("headless") {
		if err := runHeadless(core, c.Int("frames")); err != nil {
			return err
		}
		return persistSRAM(core, sramPath)
	}

	return runInteractive(core, c.Bool("sdl2"), sramPath)
}

func runInteractive(core *gbcore.Core, useSDL2 bool, sramPath string) error {
	var be backend.Backend
	if useSDL2 {
		sdl2Backend, err := newSDL2Backend()
		if err != nil {
			return err
		}
		be = sdl2Backend
	} else {
		be = backend.NewTerminal()
	}

	if err := be.Init(); err != nil {
		return fmt.Errorf("initializing backend: %w", err)
	}
	defer be.Cleanup()

	for {
		result := core.StepFrame()

		buttons, quit, err := be.Update(result.Framebuffer)
		if err != nil {
			return fmt.Errorf("backend update: %w", err)
		}
		if quit {
			break
		}

		core.SetButtons(buttons)
	}

	return persistSRAM(core, sramPath)
}

func runHeadless(core *gbcore.Core, frames int) error {
	hb := backend.NewHeadless()
	if err := hb.Init(); err != nil {
		return err
	}
	defer hb.Cleanup()

	for i := 0; frames <= 0 || i < frames; i++ {
		result := core.StepFrame()
		if _, _, err := hb.Update(result.Framebuffer); err != nil {
			return err
		}
		if i%60 == 0 {
			slog.Info("frame progress", "frame", i)
		}
	}

	return nil
}

func resolvePalette(name string) gbcore.Palette {
	switch name {
	case "green":
		return gbcore.GreenDMGPalette
	default:
		return gbcore.GreyPalette
	}
}

func persistSRAM(core *gbcore.Core, sramPath string) error {
	if sramPath == "" {
		return nil
	}
	ram, ok := core.SnapshotSRAM()
	if !ok {
		return nil
	}
	return os.WriteFile(sramPath, ram, 0644)
}
