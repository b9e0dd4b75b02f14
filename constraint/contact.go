package constraint

import (
	"math"

	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ContactSettings tune how contacts resolve penetration.
type ContactSettings struct {
	// MaximumBias caps the velocity used to push bodies apart
	MaximumBias float64
	// BiasFactor is the fraction of penetration corrected per second of simulation
	BiasFactor float64
	// MinimumVelocity skips iterations once the relative velocity is tiny
	MinimumVelocity float64
	// AllowedPenetration is left uncorrected to keep contacts alive
	AllowedPenetration float64
	// BreakThreshold is how far contact points may drift before being dropped
	BreakThreshold float64

	Mixing MixingType
}

func DefaultContactSettings() ContactSettings {
	return ContactSettings{
		MaximumBias:        10.0,
		BiasFactor:         0.25,
		MinimumVelocity:    0.001,
		AllowedPenetration: 0.01,
		BreakThreshold:     0.01,
		Mixing:             MixDefault,
	}
}

// ContactPool hands out reusable contacts. The world owns one.
type ContactPool interface {
	GetNew() *Contact
	GiveBack(c *Contact)
}

// Contact is a single point of a contact manifold. The normal points from
// body1 toward body2 and the penetration is positive while they overlap.
type Contact struct {
	settings ContactSettings

	body1 *actor.RigidBody
	body2 *actor.RigidBody

	normal  mgl64.Vec3
	tangent mgl64.Vec3

	// Anchors in body space, followed as the bodies move
	localAnchor1 mgl64.Vec3
	localAnchor2 mgl64.Vec3

	// World offsets from the body centers
	relativePos1 mgl64.Vec3
	relativePos2 mgl64.Vec3

	p1 mgl64.Vec3
	p2 mgl64.Vec3

	penetration        float64
	initialPenetration float64

	accumulatedNormalImpulse  float64
	accumulatedTangentImpulse float64

	staticFriction  float64
	dynamicFriction float64
	restitution     float64
	friction        float64

	massNormal  float64
	massTangent float64

	restitutionBias       float64
	speculativeVelocity   float64
	lostSpeculativeBounce float64

	treatBody1AsStatic bool
	treatBody2AsStatic bool

	newContact   bool
	lastTimeStep float64
}

// NewContact is the constructor pools use.
func NewContact() *Contact {
	return &Contact{lastTimeStep: math.Inf(1)}
}

// Initialize (re)binds the contact to two bodies and a pair of world points.
// A new contact resets its impulses and materials; an existing one keeps its
// accumulated impulses for warm starting.
func (c *Contact) Initialize(body1, body2 *actor.RigidBody, point1, point2, normal mgl64.Vec3, penetration float64, newContact bool, settings ContactSettings) {
	c.body1 = body1
	c.body2 = body2
	c.normal = normal.Normalize()
	c.p1 = point1
	c.p2 = point2
	c.newContact = newContact

	c.relativePos1 = point1.Sub(body1.Position())
	c.relativePos2 = point2.Sub(body2.Position())
	c.localAnchor1 = body1.InverseOrientation().Mul3x1(c.relativePos1)
	c.localAnchor2 = body2.InverseOrientation().Mul3x1(c.relativePos2)

	c.initialPenetration = penetration
	c.penetration = penetration

	if newContact {
		c.treatBody1AsStatic = body1.IsStatic()
		c.treatBody2AsStatic = body2.IsStatic()

		c.accumulatedNormalImpulse = 0
		c.accumulatedTangentImpulse = 0
		c.lostSpeculativeBounce = 0
		c.lastTimeStep = math.Inf(1)

		c.staticFriction = ComputeStaticFriction(settings.Mixing, body1.Material, body2.Material)
		c.dynamicFriction = ComputeDynamicFriction(settings.Mixing, body1.Material, body2.Material)
		c.restitution = ComputeRestitution(settings.Mixing, body1.Material, body2.Material)
	}

	c.settings = settings
}

// UpdatePosition moves both contact points with their bodies and measures
// the penetration again along the stored normal.
func (c *Contact) UpdatePosition() {
	c.relativePos1 = c.body1.Orientation().Mul3x1(c.localAnchor1)
	c.relativePos2 = c.body2.Orientation().Mul3x1(c.localAnchor2)
	c.p1 = c.body1.Position().Add(c.relativePos1)
	c.p2 = c.body2.Position().Add(c.relativePos2)

	c.penetration = c.p1.Sub(c.p2).Dot(c.normal)
}

func (c *Contact) relativeVelocity() mgl64.Vec3 {
	return c.body2.PointVelocity(c.relativePos2).Sub(c.body1.PointVelocity(c.relativePos1))
}

func (c *Contact) inverseMassAlong(direction mgl64.Vec3) float64 {
	k := 0.0
	if !c.treatBody1AsStatic {
		k += c.body1.InverseMass()
		if !c.body1.IsParticle() {
			rn := c.body1.InverseInertiaWorld().Mul3x1(c.relativePos1.Cross(direction)).Cross(c.relativePos1)
			k += rn.Dot(direction)
		}
	}
	if !c.treatBody2AsStatic {
		k += c.body2.InverseMass()
		if !c.body2.IsParticle() {
			rn := c.body2.InverseInertiaWorld().Mul3x1(c.relativePos2.Cross(direction)).Cross(c.relativePos2)
			k += rn.Dot(direction)
		}
	}
	return k
}

func (c *Contact) applyImpulse(impulse mgl64.Vec3) {
	if !c.treatBody1AsStatic {
		c.body1.ApplyImpulseAt(impulse.Mul(-1), c.relativePos1)
	}
	if !c.treatBody2AsStatic {
		c.body2.ApplyImpulseAt(impulse, c.relativePos2)
	}
}

// PrepareForIteration computes the effective masses and biases for this step
// and applies the impulses carried over from the previous one.
func (c *Contact) PrepareForIteration(dt float64) {
	dv := c.relativeVelocity()

	if k := c.inverseMassAlong(c.normal); k > 0 {
		c.massNormal = 1.0 / k
	} else {
		c.massNormal = 0
	}

	relNormalVel := dv.Dot(c.normal)

	c.tangent = dv.Sub(c.normal.Mul(relNormalVel))
	if lenSq := c.tangent.LenSqr(); lenSq != 0 {
		c.tangent = c.tangent.Mul(1.0 / math.Sqrt(lenSq))
	}

	if k := c.inverseMassAlong(c.tangent); k > 0 {
		c.massTangent = 1.0 / k
	} else {
		c.massTangent = 0
	}

	c.restitutionBias = c.lostSpeculativeBounce
	c.speculativeVelocity = 0

	if c.penetration > c.settings.AllowedPenetration {
		c.restitutionBias = c.settings.BiasFactor / dt * math.Max(0, c.penetration-c.settings.AllowedPenetration)
		c.restitutionBias = min(max(c.restitutionBias, 0), c.settings.MaximumBias)
	}

	ratio := dt / c.lastTimeStep
	c.accumulatedNormalImpulse *= ratio
	c.accumulatedTangentImpulse *= ratio

	// Static friction holds while the impulse needed to stop sliding stays
	// inside the friction cone
	tangentImpulse := c.massTangent * -dv.Dot(c.tangent)
	if math.Abs(tangentImpulse) > c.staticFriction*c.accumulatedNormalImpulse {
		c.friction = c.dynamicFriction
	} else {
		c.friction = c.staticFriction
	}

	// Restitution only on the first step of a fast impact
	if relNormalVel < -c.settings.MinimumVelocity && c.newContact {
		c.restitutionBias = math.Max(-c.restitution*relNormalVel, c.restitutionBias)
	}

	// Speculative contact: bodies are apart but will touch, let them close the
	// gap and keep the bounce for the step they actually meet
	if c.penetration < -c.settings.AllowedPenetration {
		c.speculativeVelocity = c.penetration / dt
		c.lostSpeculativeBounce = c.restitutionBias
		c.restitutionBias = 0
	} else {
		c.lostSpeculativeBounce = 0
	}

	c.applyImpulse(c.normal.Mul(c.accumulatedNormalImpulse).Add(c.tangent.Mul(c.accumulatedTangentImpulse)))

	c.lastTimeStep = dt
	c.newContact = false
}

// Iterate runs one sequential impulse pass on the contact.
func (c *Contact) Iterate() {
	if c.treatBody1AsStatic && c.treatBody2AsStatic {
		return
	}

	dv := c.relativeVelocity()
	if dv.LenSqr() < c.settings.MinimumVelocity*c.settings.MinimumVelocity {
		return
	}

	// ========== NORMAL ==========
	vn := dv.Dot(c.normal)
	normalImpulse := c.massNormal * (-vn + c.restitutionBias + c.speculativeVelocity)

	old := c.accumulatedNormalImpulse
	c.accumulatedNormalImpulse = math.Max(old+normalImpulse, 0)
	normalImpulse = c.accumulatedNormalImpulse - old

	// ========== FRICTION ==========
	vt := dv.Dot(c.tangent)
	maxTangentImpulse := c.friction * c.accumulatedNormalImpulse
	tangentImpulse := c.massTangent * -vt

	old = c.accumulatedTangentImpulse
	c.accumulatedTangentImpulse = min(max(old+tangentImpulse, -maxTangentImpulse), maxTangentImpulse)
	tangentImpulse = c.accumulatedTangentImpulse - old

	c.applyImpulse(c.normal.Mul(normalImpulse).Add(c.tangent.Mul(tangentImpulse)))
}

func (c *Contact) Body1() *actor.RigidBody { return c.body1 }
func (c *Contact) Body2() *actor.RigidBody { return c.body2 }

func (c *Contact) Normal() mgl64.Vec3 {
	return c.normal
}

func (c *Contact) Tangent() mgl64.Vec3 {
	return c.tangent
}

// Position1 is the contact point on body1 in world space.
func (c *Contact) Position1() mgl64.Vec3 {
	return c.p1
}

// Position2 is the contact point on body2 in world space.
func (c *Contact) Position2() mgl64.Vec3 {
	return c.p2
}

func (c *Contact) Penetration() float64 {
	return c.penetration
}

func (c *Contact) InitialPenetration() float64 {
	return c.initialPenetration
}

func (c *Contact) AppliedNormalImpulse() float64 {
	return c.accumulatedNormalImpulse
}

func (c *Contact) AppliedTangentImpulse() float64 {
	return c.accumulatedTangentImpulse
}

func (c *Contact) Restitution() float64 {
	return c.restitution
}

func (c *Contact) StaticFriction() float64 {
	return c.staticFriction
}

func (c *Contact) DynamicFriction() float64 {
	return c.dynamicFriction
}

func (c *Contact) DebugDraw(drawer actor.DebugDrawer) {
	drawer.DrawLine(c.p1, c.p1.Add(c.normal))
	drawer.DrawPoint(c.p1)
	drawer.DrawPoint(c.p2)
}
