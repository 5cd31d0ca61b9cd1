// Package station composes the kernel into service stations: a job arrives,
// waits for a unit of the station's pool, is served for a random time and
// moves on to the next station or leaves the network.
package station

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simkernel/sim"
	"github.com/inference-sim/simkernel/sim/random"
	"github.com/inference-sim/simkernel/sim/resource"
)

// Job is one customer flowing through the network.
type Job struct {
	ID      int64
	Created float64

	arrived float64 // arrival at the current station
}

// Station is a pool of servers with a random service time.
type Station struct {
	*sim.Element

	pool     *resource.Pool
	service  *sim.RandomVariable
	transfer *sim.RandomVariable // nil hands jobs on at once
	rule     resource.PreemptionRule
	next     *Station
	exit     func(j *Job) error

	// err holds a failure raised inside a reactor callback, which cannot
	// return it. It ends the replication and is returned by AfterReplication.
	err error

	numInSystem *sim.TimeWeighted
	systemTime  *sim.Response
	served      *sim.Counter
	lost        *sim.Counter
}

// New attaches a station with its own pool to parent.
func New(parent *sim.Element, name string, servers int, service random.Distribution, pc resource.PoolConfig) (*Station, error) {
	s := &Station{rule: resource.NoPreemption}
	el, err := sim.NewElement(parent, name, "Station", s)
	if err != nil {
		return nil, err
	}
	s.Element = el
	pc.Units = servers
	if s.pool, err = resource.NewPool(el, el.Name()+":Servers", pc); err != nil {
		return nil, err
	}
	if s.service, err = sim.NewRandomVariable(el, el.Name()+":ServiceTime", service); err != nil {
		return nil, err
	}
	if s.numInSystem, err = sim.NewTimeWeighted(el, el.Name()+":NumInSystem", 0); err != nil {
		return nil, err
	}
	if s.systemTime, err = sim.NewResponse(el, el.Name()+":SystemTime"); err != nil {
		return nil, err
	}
	if s.served, err = sim.NewCounter(el, el.Name()+":NumServed"); err != nil {
		return nil, err
	}
	if s.lost, err = sim.NewCounter(el, el.Name()+":NumLost"); err != nil {
		return nil, err
	}
	return s, nil
}

// Pool returns the station's servers.
func (s *Station) Pool() *resource.Pool { return s.pool }

// ServiceTime returns the service-time random variable.
func (s *Station) ServiceTime() *sim.RandomVariable { return s.service }

// NumInSystem returns the time-weighted number of jobs at the station.
func (s *Station) NumInSystem() *sim.TimeWeighted { return s.numInSystem }

// SystemTime returns the response observing each job's time at the station.
func (s *Station) SystemTime() *sim.Response { return s.systemTime }

// NumServed returns the counter of completed services.
func (s *Station) NumServed() *sim.Counter { return s.served }

// NumLost returns the counter of jobs rejected by the pool.
func (s *Station) NumLost() *sim.Counter { return s.lost }

// SetTransferTime delays each departure by a draw from d. Must be called
// while the model is being built.
func (s *Station) SetTransferTime(d random.Distribution) error {
	rv, err := sim.NewRandomVariable(s.Element, s.Name()+":TransferTime", d)
	if err != nil {
		return err
	}
	s.transfer = rv
	return nil
}

// SetPreemptionRule sets the rule used for the station's service requests.
func (s *Station) SetPreemptionRule(rule resource.PreemptionRule) { s.rule = rule }

// SetNext routes departing jobs to next. A nil next sends them to the exit.
func (s *Station) SetNext(next *Station) { s.next = next }

// SetExit installs the callback for jobs leaving the last station.
func (s *Station) SetExit(fn func(j *Job) error) { s.exit = fn }

func (s *Station) BeforeReplication() error {
	s.err = nil
	return nil
}

func (s *Station) AfterReplication() error { return s.err }

func (s *Station) fail(err error) {
	if s.err != nil {
		return
	}
	s.err = err
	s.Executive().Stop(err.Error())
}

// Arrive admits j and asks the pool for a server.
func (s *Station) Arrive(j *Job) error {
	if s.err != nil {
		return s.err
	}
	j.arrived = s.Time()
	s.numInSystem.Increment(1)
	r, err := resource.NewRequest(s.Element, resource.RequestConfig{
		Rule:        s.rule,
		ServiceTime: s.service.Value(),
		Reactor:     s,
		Payload:     j,
	})
	if err != nil {
		return err
	}
	if err := s.pool.Seize(r); err != nil && !errors.Is(err, resource.ErrUnschedulable) {
		return fmt.Errorf("station %s: %w", s.Name(), err)
	}
	return nil
}

func (s *Station) Allocated(*resource.Request) {}
func (s *Station) Preempted(*resource.Request) {}
func (s *Station) Resumed(*resource.Request)   {}
func (s *Station) Canceled(*resource.Request)  {}

// Rejected drops the job.
func (s *Station) Rejected(r *resource.Request) {
	s.numInSystem.Decrement(1)
	s.lost.Increment(1)
	logrus.Debugf("[t=%12.4f] station %s lost job %d", s.Time(), s.Name(), r.Payload.(*Job).ID)
}

// Completed hands the job on after the transfer time, or at the same simulated
// time once the unit has been released. A departure that cannot be scheduled
// ends the replication with an error.
func (s *Station) Completed(r *resource.Request) {
	j := r.Payload.(*Job)
	s.numInSystem.Decrement(1)
	s.systemTime.Observe(s.Time() - j.arrived)
	s.served.Increment(1)
	delay := 0.0
	if s.transfer != nil {
		delay = s.transfer.Value()
	}
	if _, err := s.Schedule(s.depart, delay, sim.DefaultPriority, "Depart", j); err != nil {
		s.fail(fmt.Errorf("station %s: schedule departure of job %d: %w", s.Name(), j.ID, err))
	}
}

func (s *Station) depart(ev *sim.Event) error {
	if s.err != nil {
		return s.err
	}
	j := ev.Message().(*Job)
	if s.next != nil {
		return s.next.Arrive(j)
	}
	if s.exit != nil {
		return s.exit(j)
	}
	return nil
}
