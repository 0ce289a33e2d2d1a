package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/korxr/core"
	"github.com/devblok/korxr/gfx"
	"github.com/devblok/korxr/gfx/soft"
	"github.com/devblok/korxr/xr/loopback"
)

func init() {
	runtime.LockOSThread()
}

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
)

var (
	envFile    = flag.String("env", "", "Load environment overrides from file")
	continuous = flag.Bool("continuous", false, "Drive overlays along continuous paths instead of staged reveal")
	verbose    = flag.Bool("v", false, "Debug logging")
	winWidth   = flag.Int("width", 1024, "Window width")
	winHeight  = flag.Int("height", 1024, "Window height")
)

func newWindow() *sdl.Window {
	window, err := sdl.CreateWindow("korxr",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(*winWidth),
		int32(*winHeight),
		sdl.WINDOW_SHOWN)
	if err != nil {
		panic(err)
	}
	return window
}

func main() {
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.WithError(err).Fatal("could not load environment file")
		}
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			panic(err)
		}
		if err := trace.Start(f); err != nil {
			panic(err)
		}
		defer trace.Stop()
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		panic(err)
	}
	defer sdl.Quit()

	window := newWindow()
	defer window.Destroy()

	native, err := window.GetSurface()
	if err != nil {
		panic(err)
	}

	ctx, err := soft.NewContext(&gfx.Surface{
		Width:  *winWidth,
		Height: *winHeight,
		Native: uintptr(native.Data()),
	})
	if err != nil {
		panic(err)
	}
	defer ctx.Release()

	cfg := core.FromEnvironment(core.DefaultConfiguration())

	rt, err := loopback.New(loopback.Config{
		Graphics:      ctx,
		FramePeriod:   cfg.Time.FramePeriod(),
		PresentWidth:  *winWidth,
		PresentHeight: *winHeight,
	})
	if err != nil {
		panic(err)
	}

	var driver core.Driver
	if *continuous {
		driver = core.NewContinuous()
	} else {
		driver = core.NewStagedReveal(cfg.Animation)
	}

	exitC := make(chan struct{})
	var exitOnce sync.Once
	requestExit := func() { exitOnce.Do(func() { close(exitC) }) }

	session, err := core.NewSession(rt, ctx, cfg, driver, core.Hooks{
		OnStop: requestExit,
		OnInputDown: func(x, y float32) {
			log.WithFields(log.Fields{"x": x, "y": y}).Debug("animation reset")
		},
	})
	if err != nil {
		log.WithError(err).Fatal("session initialization failed")
	}

	control := core.NewControl(cfg.Policy)
	handle := control.Register(session)
	defer control.Close()

	for id := range cfg.Overlays {
		if !control.CreateOverlay(handle, id) {
			log.WithField("id", id).Warn("overlay activation failed")
		}
	}

	log.WithFields(log.Fields{
		"runtime":    control.GetRuntimeInfo(handle),
		"extensions": control.GetSupportedExtensions(handle),
	}).Info("compositor up")

	programSync := sync.WaitGroup{}

	/* Compositor loop */
	programSync.Add(1)
	go func() {
		runtime.LockOSThread()
		session.Loop(exitC)
		requestExit()
		programSync.Done()
	}()

	/* Frame counter loop */
	programSync.Add(1)
	go func() {
		var last uint64
	CounterLoop:
		for {
			select {
			case <-exitC:
				break CounterLoop
			default:
				count := control.GetFrameCount(handle)
				fmt.Printf("\r\033[2KFrames: %d (%d/s)\tStatus: %s", count, (count-last)*2, control.Status(handle))
				last = count
				time.Sleep(500 * time.Millisecond)
			}
		}
		programSync.Done()
	}()

	timeService := core.NewTime(cfg.Time)
	defer timeService.Stop()

EventLoop:
	for {
		select {
		case <-exitC:
			log.Info("event loop exited")
			break EventLoop
		case <-timeService.EventTicker().C:
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE && et.State == sdl.PRESSED {
						windDown(session, requestExit)
						continue EventLoop
					}
				case *sdl.MouseButtonEvent:
					if et.Type == sdl.MOUSEBUTTONDOWN {
						wx := 2*float32(et.X)/float32(*winWidth) - 1
						wy := 1 - 2*float32(et.Y)/float32(*winHeight)
						session.InputDown(wx, wy)
					}
				case *sdl.WindowEvent:
					switch et.Event {
					case sdl.WINDOWEVENT_FOCUS_GAINED:
						session.Resume()
					case sdl.WINDOWEVENT_FOCUS_LOST:
						session.Pause()
					}
				case *sdl.QuitEvent:
					windDown(session, requestExit)
					continue EventLoop
				}
			}
		}
	}

	programSync.Wait()
	fmt.Println()

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			panic(err)
		}
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			panic(err)
		}
		f.Close()
	}
}

// windDown asks the runtime to stop the session and forces the exit
// if the Exiting event does not arrive in time.
func windDown(session *core.Session, force func()) {
	if err := session.RequestExit(); err != nil {
		log.WithError(err).Warn("exit request failed")
		force()
		return
	}
	go func() {
		time.Sleep(2 * time.Second)
		force()
	}()
}
