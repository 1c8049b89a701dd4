package grading

import "math"

// Letter is a letter grade on the standard A+ through F scale.
type Letter string

const (
	LetterAPlus  Letter = "A+"
	LetterA      Letter = "A"
	LetterAMinus Letter = "A-"
	LetterBPlus  Letter = "B+"
	LetterB      Letter = "B"
	LetterBMinus Letter = "B-"
	LetterCPlus  Letter = "C+"
	LetterC      Letter = "C"
	LetterCMinus Letter = "C-"
	LetterDPlus  Letter = "D+"
	LetterD      Letter = "D"
	LetterDMinus Letter = "D-"
	LetterF      Letter = "F"
)

// String returns the letter as displayed on a report card.
func (l Letter) String() string {
	return string(l)
}

// Percent converts a correct/total score pair into a percentage rounded to one
// decimal place. A non-positive total yields 0 rather than an error.
func Percent(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*1000) / 10
}

// WeightedPercent computes the weighted average percent over raw counts:
// sum of correct answers over sum of totals. This is the rollup formula, used
// wherever a cumulative grade is reported. It deliberately differs from
// MeanPercent, which answers how individual scores trended.
func WeightedPercent(sumCorrect, sumTotal int) float64 {
	return Percent(sumCorrect, sumTotal)
}

// MeanPercent computes the unweighted mean of per-assignment percentages,
// rounded to one decimal place. Returns 0 when values is empty.
func MeanPercent(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

// LetterForPercent maps a percentage to a letter grade. Each band is inclusive
// on its lower bound.
func LetterForPercent(percent float64) Letter {
	switch {
	case percent >= 97:
		return LetterAPlus
	case percent >= 93:
		return LetterA
	case percent >= 90:
		return LetterAMinus
	case percent >= 87:
		return LetterBPlus
	case percent >= 83:
		return LetterB
	case percent >= 80:
		return LetterBMinus
	case percent >= 77:
		return LetterCPlus
	case percent >= 73:
		return LetterC
	case percent >= 70:
		return LetterCMinus
	case percent >= 67:
		return LetterDPlus
	case percent >= 63:
		return LetterD
	case percent >= 60:
		return LetterDMinus
	default:
		return LetterF
	}
}

// GPAForLetter maps a letter grade to its grade point value.
func GPAForLetter(letter Letter) float64 {
	switch letter {
	case LetterAPlus, LetterA:
		return 4.0
	case LetterAMinus:
		return 3.7
	case LetterBPlus:
		return 3.3
	case LetterB:
		return 3.0
	case LetterBMinus:
		return 2.7
	case LetterCPlus:
		return 2.3
	case LetterC:
		return 2.0
	case LetterCMinus:
		return 1.7
	case LetterDPlus:
		return 1.3
	case LetterD:
		return 1.0
	case LetterDMinus:
		return 0.7
	default:
		return 0.0
	}
}

// RoundGPA rounds a grade point average to two decimal places for display.
func RoundGPA(value float64) float64 {
	return math.Round(value*100) / 100
}
