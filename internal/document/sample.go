package document

// assignmentsPerStudent matches the volume the in-app generator produced.
const assignmentsPerStudent = 100

// xorshiftSource is the tiny deterministic generator used for sample data, so
// seeded runs reproduce the exact same dataset in tests and demos.
type xorshiftSource struct {
	state uint32
}

func newXorshiftSource(seed uint32) *xorshiftSource {
	if seed == 0 {
		seed = 0x9e3779b9
	}
	return &xorshiftSource{state: seed}
}

// next returns a float in [0, 1).
func (s *xorshiftSource) next() float64 {
	x := s.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.state = x
	return float64(x) / float64(1<<32)
}

func (s *xorshiftSource) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.next() * float64(n))
}

// SeedSampleData fills the document with roughly one hundred sample
// assignments per student, spread across the active terms with scores in the
// 50-100% range. It requires at least one student and one subject.
func (d *Document) SeedSampleData(ids IDProvider, seed uint32) (int, error) {
	if len(d.Students) == 0 {
		return 0, ErrUnknownStudent
	}
	if len(d.Subjects) == 0 {
		return 0, ErrUnknownSubject
	}

	terms := d.ActiveTerms()
	if len(terms) == 0 {
		return 0, ErrInvalidTermRange
	}

	source := newXorshiftSource(seed)
	created := 0
	for _, student := range d.Students {
		perSubject := assignmentsPerStudent / len(d.Subjects)
		if perSubject < 1 {
			perSubject = 1
		}
		studentCreated := 0
		for _, subject := range d.Subjects {
			for i := 0; i < perSubject; i++ {
				term := terms[i%len(terms)]
				if err := d.appendSampleAssignment(ids, student.ID, subject.ID, term, source); err != nil {
					return created, err
				}
				created++
				studentCreated++
			}
		}
		for studentCreated < assignmentsPerStudent {
			subject := d.Subjects[source.intn(len(d.Subjects))]
			term := terms[source.intn(len(terms))]
			if err := d.appendSampleAssignment(ids, student.ID, subject.ID, term, source); err != nil {
				return created, err
			}
			created++
			studentCreated++
		}
	}
	return created, nil
}

func (d *Document) appendSampleAssignment(ids IDProvider, studentID, subjectID string, term Term, source *xorshiftSource) error {
	span := term.Start.DaysUntil(term.End)
	if span < 1 {
		span = 1
	}
	date := term.Start.AddDays(source.intn(span))
	total := 10 + source.intn(21)
	correct := int(float64(total) * (0.5 + source.next()*0.5))
	if correct > total {
		correct = total
	}
	if correct < 0 {
		correct = 0
	}
	_, err := d.AddAssignment(ids, studentID, subjectID, total, correct, date)
	return err
}
