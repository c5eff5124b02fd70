package main

import (
	"os"

	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "oxy-render"
	app.Usage = "render scenes with a pool of drawlist workers"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render a grid of spinning lit cubes",
			Description: `
Open a window and render a grid of cubes that spin on every engine tick.
With --model, every cell shows the meshes of a glTF asset instead.
Each tick hands a scene snapshot to the render manager; drawlist workers
cull and sort it while the coordinator submits finished drawlists.

Frame statistics are printed when the window is closed.`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 1280,
					Usage: "window width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 720,
					Usage: "window height",
				},
				cli.IntFlag{
					Name:  "workers",
					Value: 2,
					Usage: "number of drawlist workers (0 renders nothing)",
				},
				cli.IntFlag{
					Name:  "drawlists",
					Value: 2,
					Usage: "number of drawlists in the pool",
				},
				cli.IntFlag{
					Name:  "cubes",
					Value: 1000,
					Usage: "number of cubes in the grid",
				},
				cli.StringFlag{
					Name:  "model",
					Usage: "glTF or GLB file to render in place of the cube",
				},
				cli.Float64Flag{
					Name:  "spacing",
					Value: 3,
					Usage: "distance between neighbouring cubes",
				},
				cli.Float64Flag{
					Name:  "tick-rate",
					Value: 60,
					Usage: "engine ticks per second",
				},
				cli.BoolFlag{
					Name:  "vsync",
					Usage: "wait for vertical blank before presenting",
				},
				cli.BoolFlag{
					Name:  "msaa",
					Usage: "enable 4x multisample anti-aliasing",
				},
				cli.BoolFlag{
					Name:  "compute",
					Usage: "hand a headless compute device to the first worker",
				},
				cli.BoolFlag{
					Name:  "software",
					Usage: "force the software fallback adapter",
				},
			},
			Action: renderCubes,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
