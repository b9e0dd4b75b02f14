package main

import (
	"flag"
	"log/slog"
	"os"

	jitter "github.com/fxredeemer/jitterphysics-sub000"
	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/fxredeemer/jitterphysics-sub000/collision"
	"github.com/fxredeemer/jitterphysics-sub000/constraint"
	"github.com/fxredeemer/jitterphysics-sub000/softbody"
	"github.com/go-gl/mathgl/mgl64"
)

// lineCounter compte ce que le monde dessinerait
type lineCounter struct {
	lines, points, triangles int
}

func (d *lineCounter) DrawLine(start, end mgl64.Vec3)     { d.lines++ }
func (d *lineCounter) DrawPoint(point mgl64.Vec3)         { d.points++ }
func (d *lineCounter) DrawTriangle(p1, p2, p3 mgl64.Vec3) { d.triangles++ }

// SetupScene creates a stack of boxes on a static ground, a pendulum and a
// cloth falling next to them.
func SetupScene(world *jitter.World, height int) ([]*actor.RigidBody, error) {
	ground := actor.NewRigidBody(actor.NewBox(mgl64.Vec3{40, 1, 40}), actor.BodyTypeStatic, actor.DefaultMaterial())
	ground.SetPosition(mgl64.Vec3{0, -0.5, 0})
	if err := world.AddBody(ground); err != nil {
		return nil, err
	}

	// La pile
	boxes := make([]*actor.RigidBody, height)
	for i := range boxes {
		box := actor.NewRigidBody(actor.NewBox(mgl64.Vec3{1, 1, 1}), actor.BodyTypeDynamic, actor.DefaultMaterial())
		box.SetPosition(mgl64.Vec3{0, 0.5 + float64(i), 0})
		if err := world.AddBody(box); err != nil {
			return nil, err
		}
		boxes[i] = box
	}

	// Pendulum pinned to the world
	bob := actor.NewRigidBody(actor.NewSphere(0.3), actor.BodyTypeDynamic, actor.DefaultMaterial())
	bob.SetPosition(mgl64.Vec3{6, 6, 0})
	if err := world.AddBody(bob); err != nil {
		return nil, err
	}
	if err := world.AddConstraint(constraint.NewFixedPoint(bob, mgl64.Vec3{4, 6, 0})); err != nil {
		return nil, err
	}

	cloth := softbody.NewCloth(8, 8, 0.5)
	cloth.Translate(mgl64.Vec3{-8, 3, -2})
	if err := world.AddSoftBody(cloth); err != nil {
		return nil, err
	}

	return boxes, nil
}

func main() {
	steps := flag.Int("steps", 1000, "number of steps")
	height := flag.Int("height", 10, "boxes in the stack")
	broadphase := flag.String("broadphase", "psap", "bruteforce, sap, psap or grid")
	multithreaded := flag.Bool("mt", true, "multithreaded step")
	flag.Parse()
	*height = max(*height, 1)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var system collision.System
	switch *broadphase {
	case "bruteforce":
		system = collision.NewBruteForce()
	case "sap":
		system = collision.NewSAP()
	case "grid":
		system = collision.NewSpatialGrid(2, 4096)
	default:
		system = collision.NewPersistentSAP()
	}

	world := jitter.NewWorld(system, jitter.WithLogger(logger))
	defer world.Close()

	contacts := 0
	world.Events.Subscribe(jitter.CONTACT_CREATED, func(event jitter.Event) {
		contacts++
	})
	world.Events.Subscribe(jitter.BODY_DEACTIVATED, func(event jitter.Event) {
		logger.Debug("body asleep", "body", event.(jitter.BodyDeactivatedEvent).Body)
	})

	boxes, err := SetupScene(world, *height)
	if err != nil {
		logger.Error("scene setup failed", "error", err)
		os.Exit(1)
	}

	const dt = 1.0 / 100
	for step := range *steps {
		if err := world.Step(dt, *multithreaded); err != nil {
			logger.Error("step failed", "step", step, "error", err)
			os.Exit(1)
		}
		if step%100 == 0 {
			top := boxes[len(boxes)-1]
			logger.Info("step",
				"step", step,
				"top", top.Position(),
				"awake", top.IsActive(),
				"islands", len(world.Islands()),
				"arbiters", len(world.Arbiters()),
				"contacts", contacts,
			)
		}
	}

	drawer := &lineCounter{}
	world.DebugDraw(drawer)
	logger.Info("done", "lines", drawer.lines, "points", drawer.points, "triangles", drawer.triangles)
}
