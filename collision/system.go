// Package collision finds the contacts between the bodies of a world. A
// broad phase strategy pairs up entities whose bounding boxes overlap; the
// shared Detector then runs the narrow phase on every pair and reports the
// contacts to a CollisionHandler.
package collision

import (
	"errors"
	"math"

	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/fxredeemer/jitterphysics-sub000/gjk"
	"github.com/fxredeemer/jitterphysics-sub000/mpr"
	"github.com/fxredeemer/jitterphysics-sub000/softbody"
	"github.com/fxredeemer/jitterphysics-sub000/worker"
	"github.com/go-gl/mathgl/mgl64"
)

var ErrEntityExists = errors.New("collision: entity already added")

// Entity is anything the broad phase can sort: a rigid body or a soft body.
type Entity interface {
	BoundingBox() geometry.AABB
	IsStaticOrInactive() bool

	entity()
}

type RigidEntity struct {
	Body *actor.RigidBody
}

func (e RigidEntity) BoundingBox() geometry.AABB {
	return e.Body.BoundingBox()
}

func (e RigidEntity) IsStaticOrInactive() bool {
	return e.Body.IsStatic() || !e.Body.IsActive()
}

func (RigidEntity) entity() {}

type SoftEntity struct {
	Body *softbody.SoftBody
}

func (e SoftEntity) BoundingBox() geometry.AABB {
	return e.Body.BoundingBox()
}

func (e SoftEntity) IsStaticOrInactive() bool {
	return !e.Body.IsActive()
}

func (SoftEntity) entity() {}

// BroadphaseFilter vetoes a pair before the narrow phase runs.
type BroadphaseFilter func(entity1, entity2 Entity) bool

// NarrowphaseFilter vetoes a contact before it reaches the handler.
type NarrowphaseFilter func(body1, body2 *actor.RigidBody, point, normal mgl64.Vec3, penetration float64) bool

// RaycastFilter vetoes a ray hit.
type RaycastFilter func(body *actor.RigidBody, normal mgl64.Vec3, fraction float64) bool

// CollisionHandler receives every contact found by the narrow phase. The
// normal points from body1 toward body2 and penetration is positive while the
// bodies overlap. It is called concurrently when detection is multithreaded.
type CollisionHandler = softbody.CollisionHandler

type RaycastHit struct {
	Body     *actor.RigidBody
	Normal   mgl64.Vec3
	Fraction float64
}

// System is a broad phase strategy.
type System interface {
	AddEntity(entity Entity) error
	RemoveEntity(entity Entity) bool
	Entities() []Entity

	// Detect runs both phases and reports every contact to the handler
	Detect(multithreaded bool)

	Raycast(origin, direction mgl64.Vec3, filter RaycastFilter) (RaycastHit, bool)
	RaycastBody(body *actor.RigidBody, origin, direction mgl64.Vec3) (float64, mgl64.Vec3, bool)

	SetBroadphaseFilter(filter BroadphaseFilter)
	SetNarrowphaseFilter(filter NarrowphaseFilter)
	SetCollisionHandler(handler CollisionHandler)
	SetThreadManager(tm *worker.ThreadManager)
	SetSpeculativeContacts(enabled bool)
}

type pair struct {
	entity1, entity2 Entity
}

func (p pair) swapped() pair {
	return pair{entity1: p.entity2, entity2: p.entity1}
}

func (p pair) has(e Entity) bool {
	return p.entity1 == e || p.entity2 == e
}

// Detector holds what every strategy shares: filters, the handler and the
// narrow phase itself.
type Detector struct {
	broadphaseFilter  BroadphaseFilter
	narrowphaseFilter NarrowphaseFilter
	handler           CollisionHandler
	threads           *worker.ThreadManager

	// SpeculativeContacts enables speculative contacts for every body
	SpeculativeContacts bool
	// Use the face normal of triangle meshes and terrains instead of the
	// normal found by the narrow phase
	UseTriangleMeshNormal bool
	UseTerrainNormal      bool
}

func newDetector() Detector {
	return Detector{
		UseTriangleMeshNormal: true,
		UseTerrainNormal:      true,
	}
}

func (d *Detector) SetBroadphaseFilter(filter BroadphaseFilter) {
	d.broadphaseFilter = filter
}

func (d *Detector) SetNarrowphaseFilter(filter NarrowphaseFilter) {
	d.narrowphaseFilter = filter
}

func (d *Detector) SetCollisionHandler(handler CollisionHandler) {
	d.handler = handler
}

// SetThreadManager sets the pool used by Detect(true). Without one detection
// always runs on the caller.
func (d *Detector) SetThreadManager(tm *worker.ThreadManager) {
	d.threads = tm
}

func (d *Detector) SetSpeculativeContacts(enabled bool) {
	d.SpeculativeContacts = enabled
}

// passedBroadphase drops pairs of sleeping or static entities, then asks
// the filter.
func (d *Detector) passedBroadphase(entity1, entity2 Entity) bool {
	if entity1.IsStaticOrInactive() && entity2.IsStaticOrInactive() {
		return false
	}
	return d.broadphaseFilter == nil || d.broadphaseFilter(entity1, entity2)
}

// dispatch runs the narrow phase on every pair, spread over the thread
// manager when asked to.
func (d *Detector) dispatch(pairs []pair, multithreaded bool) {
	if multithreaded && d.threads != nil {
		worker.ForEach(d.threads, pairs, func(p pair) {
			d.Narrowphase(p.entity1, p.entity2)
		})
		return
	}
	for _, p := range pairs {
		d.Narrowphase(p.entity1, p.entity2)
	}
}

// Narrowphase finds the contacts between two entities.
func (d *Detector) Narrowphase(entity1, entity2 Entity) {
	switch e1 := entity1.(type) {
	case RigidEntity:
		switch e2 := entity2.(type) {
		case RigidEntity:
			d.detectRigidRigid(e1.Body, e2.Body)
		case SoftEntity:
			d.detectSoftRigid(e2.Body, e1.Body)
		}
	case SoftEntity:
		switch e2 := entity2.(type) {
		case RigidEntity:
			d.detectSoftRigid(e1.Body, e2.Body)
		case SoftEntity:
			d.detectSoftSoft(e1.Body, e2.Body)
		}
	}
}

func (d *Detector) raise(body1, body2 *actor.RigidBody, point1, point2, normal mgl64.Vec3, penetration float64) {
	if d.narrowphaseFilter != nil && !d.narrowphaseFilter(body1, body2, point1, normal, penetration) {
		return
	}
	if d.handler != nil {
		d.handler(body1, body2, point1, point2, normal, penetration)
	}
}

// ========== Rigid bodies ==========

func (d *Detector) detectRigidRigid(body1, body2 *actor.RigidBody) {
	// Lower ID first, whatever order the broad phase found the pair in
	if body2.ID() < body1.ID() {
		body1, body2 = body2, body1
	}

	multi1, isMulti1 := body1.Shape().(actor.Multishape)
	multi2, isMulti2 := body2.Shape().(actor.Multishape)
	speculative := d.SpeculativeContacts || body1.EnableSpeculativeContacts || body2.EnableSpeculativeContacts

	switch {
	case !isMulti1 && !isMulti2:
		d.detectConvex(body1, body2, body1.Shape(), body2.Shape(), speculative)
	case isMulti1 && isMulti2:
		d.detectMultiMulti(body1, body2, multi1, multi2, speculative)
	case isMulti1:
		d.detectMultiConvex(body1, body2, multi1, speculative)
	default:
		// The multishape always comes first
		d.detectMultiConvex(body2, body1, multi2, speculative)
	}
}

func (d *Detector) detectConvex(body1, body2 *actor.RigidBody, shape1, shape2 actor.SupportMappable, speculative bool) {
	t1, t2 := body1.Transform(), body2.Transform()
	if point, normal, penetration, ok := mpr.Detect(shape1, t1, shape2, t2); ok {
		point1, point2 := mpr.SupportPoints(shape1, t1, shape2, t2, point, normal)
		d.raise(body1, body2, point1, point2, normal, penetration)
	} else if speculative {
		d.detectSpeculative(body1, body2, shape1, shape2)
	}
}

// detectSpeculative reports a negative penetration for bodies that are
// apart but close enough to touch within the next step.
func (d *Detector) detectSpeculative(body1, body2 *actor.RigidBody, shape1, shape2 actor.SupportMappable) {
	point1, point2, separation, ok := gjk.ClosestPoints(shape1, body1.Transform(), shape2, body2.Transform())
	if !ok {
		return
	}

	delta := point1.Sub(point2)
	if delta.LenSqr() >= body1.SweptDirection().Sub(body2.SweptDirection()).LenSqr() {
		return
	}

	normal := separation.Mul(-1)
	if penetration := delta.Dot(normal); penetration < 0 {
		d.raise(body1, body2, point1, point2, normal, penetration)
	}
}

func (d *Detector) detectMultiConvex(body1, body2 *actor.RigidBody, multi actor.Multishape, speculative bool) {
	ms, release := multi.RequestWorkingClone()
	defer release()

	count := ms.Prepare(localBox(body2.BoundingBox(), body1))
	t1, t2 := body1.Transform(), body2.Transform()
	for i := range count {
		ms.SetCurrentShape(i)

		point, normal, penetration, ok := mpr.Detect(ms, t1, body2.Shape(), t2)
		if !ok {
			if speculative {
				d.detectSpeculative(body1, body2, ms, body2.Shape())
			}
			continue
		}

		point1, point2 := mpr.SupportPoints(ms, t1, body2.Shape(), t2, point, normal)
		if face, ok := d.faceNormal(ms, t1.Orientation); ok {
			// Face the other body, whichever side of the triangle it is on
			if face.Dot(normal) < 0 {
				face = face.Mul(-1)
			}
			normal = face
		}
		d.raise(body1, body2, point1, point2, normal, penetration)
	}
}

func (d *Detector) detectMultiMulti(body1, body2 *actor.RigidBody, multi1, multi2 actor.Multishape, speculative bool) {
	ms1, release1 := multi1.RequestWorkingClone()
	defer release1()
	ms2, release2 := multi2.RequestWorkingClone()
	defer release2()

	count1 := ms1.Prepare(localBox(body2.BoundingBox(), body1))
	count2 := ms2.Prepare(localBox(body1.BoundingBox(), body2))
	if count1 == 0 || count2 == 0 {
		return
	}

	t1, t2 := body1.Transform(), body2.Transform()
	for i := range count1 {
		ms1.SetCurrentShape(i)
		for e := range count2 {
			ms2.SetCurrentShape(e)

			if point, normal, penetration, ok := mpr.Detect(ms1, t1, ms2, t2); ok {
				point1, point2 := mpr.SupportPoints(ms1, t1, ms2, t2, point, normal)
				d.raise(body1, body2, point1, point2, normal, penetration)
			} else if speculative {
				d.detectSpeculative(body1, body2, ms1, ms2)
			}
		}
	}
}

// faceNormal returns the world normal of the selected triangle when the
// shape is a mesh or terrain configured to use it.
func (d *Detector) faceNormal(ms actor.Multishape, orientation mgl64.Mat3) (mgl64.Vec3, bool) {
	switch s := ms.(type) {
	case *actor.TriangleMesh:
		if d.UseTriangleMeshNormal {
			return orientation.Mul3x1(s.CurrentNormal()), true
		}
	case *actor.Terrain:
		if d.UseTerrainNormal {
			return orientation.Mul3x1(s.CurrentNormal()), true
		}
	}
	return mgl64.Vec3{}, false
}

// localBox expresses a world box in the body frame.
func localBox(box geometry.AABB, body *actor.RigidBody) geometry.AABB {
	shifted := geometry.AABB{
		Min: box.Min.Sub(body.Position()),
		Max: box.Max.Sub(body.Position()),
	}
	return shifted.Transform(mgl64.Vec3{}, body.InverseOrientation())
}

// ========== Soft bodies ==========

// Contacts with a soft body are reported against the nearest vertex of the
// triangle hit, with the same point on both sides.
func (d *Detector) detectSoftRigid(soft *softbody.SoftBody, body *actor.RigidBody) {
	triangles := soft.QueryTriangles(body.BoundingBox(), nil)
	if len(triangles) == 0 {
		return
	}
	world := actor.NewTransform()
	t := body.Transform()

	multi, isMulti := body.Shape().(actor.Multishape)
	if !isMulti {
		for _, triangle := range triangles {
			if point, normal, penetration, ok := mpr.Detect(body.Shape(), t, triangle, world); ok {
				vertex := soft.Points()[soft.NearestVertex(triangle, point)]
				d.raise(body, vertex, point, point, normal, penetration)
			}
		}
		return
	}

	ms, release := multi.RequestWorkingClone()
	defer release()

	count := ms.Prepare(localBox(soft.BoundingBox(), body))
	for _, triangle := range triangles {
		for i := range count {
			ms.SetCurrentShape(i)
			if point, normal, penetration, ok := mpr.Detect(ms, t, triangle, world); ok {
				vertex := soft.Points()[soft.NearestVertex(triangle, point)]
				d.raise(body, vertex, point, point, normal, penetration)
			}
		}
	}
}

func (d *Detector) detectSoftSoft(soft1, soft2 *softbody.SoftBody) {
	world := actor.NewTransform()
	tree1, tree2 := soft1.Tree(), soft2.Tree()

	tree1.QueryTree(tree2, func(proxy1, proxy2 int) {
		triangle1, triangle2 := tree1.GetUserData(proxy1), tree2.GetUserData(proxy2)

		point, normal, penetration, ok := mpr.Detect(triangle1, world, triangle2, world)
		if !ok {
			return
		}
		vertex1 := soft1.Points()[soft1.NearestVertex(triangle1, point)]
		vertex2 := soft2.Points()[soft2.NearestVertex(triangle2, point)]
		d.raise(vertex1, vertex2, point, point, normal, penetration)
	})
}

// ========== Raycast ==========

// RaycastBody casts a ray against a single body. The normal faces the ray
// origin; fraction is in units of len(direction).
func (d *Detector) RaycastBody(body *actor.RigidBody, origin, direction mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	if !body.BoundingBox().RayIntersect(origin, direction) {
		return 0, mgl64.Vec3{}, false
	}

	multi, isMulti := body.Shape().(actor.Multishape)
	if !isMulti {
		return gjk.Raycast(body.Shape(), body.Transform(), origin, direction)
	}

	ms, release := multi.RequestWorkingClone()
	defer release()

	t := body.Transform()
	count := ms.PrepareRay(t.ApplyInverse(origin), geometry.TransposedMul(t.Orientation, direction))

	fraction, normal, hit := math.MaxFloat64, mgl64.Vec3{}, false
	for i := range count {
		ms.SetCurrentShape(i)

		f, n, ok := gjk.Raycast(ms, t, origin, direction)
		if !ok || f >= fraction {
			continue
		}
		if face, ok := d.faceNormal(ms, t.Orientation); ok {
			if face.Dot(direction) > 0 {
				face = face.Mul(-1)
			}
			n = face
		}
		fraction, normal, hit = f, n, true
	}
	return fraction, normal, hit
}

// raycast returns the closest accepted hit among entities. Soft bodies are
// hit through their mass points.
func (d *Detector) raycast(entities []Entity, origin, direction mgl64.Vec3, filter RaycastFilter) (RaycastHit, bool) {
	best := RaycastHit{Fraction: math.MaxFloat64}
	found := false

	try := func(body *actor.RigidBody) {
		fraction, normal, ok := d.RaycastBody(body, origin, direction)
		if !ok || fraction >= best.Fraction {
			return
		}
		if filter != nil && !filter(body, normal, fraction) {
			return
		}
		best = RaycastHit{Body: body, Normal: normal, Fraction: fraction}
		found = true
	}

	for _, entity := range entities {
		switch e := entity.(type) {
		case RigidEntity:
			try(e.Body)
		case SoftEntity:
			for _, point := range e.Body.Points() {
				try(point)
			}
		}
	}
	return best, found
}
