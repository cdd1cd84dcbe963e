package util

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	maleFirstNames = []string{
		"James", "John", "Robert", "Michael", "William", "David", "Thomas", "Daniel",
		"Pierre", "Jean", "Louis", "Nicolas",
	}
	femaleFirstNames = []string{
		"Mary", "Patricia", "Jennifer", "Linda", "Sarah", "Emily", "Laura", "Anna",
		"Marie", "Camille", "Claire", "Julie",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Miller", "Davis", "Wilson",
		"Martin", "Bernard", "Dubois", "Moreau",
	}
)

// GeneratePatientName returns a DICOM person name (LAST^FIRST) for the
// given sex ("M" or "F").
func GeneratePatientName(sex string, rng *rand.Rand) string {
	first := maleFirstNames
	if sex == "F" {
		first = femaleFirstNames
	}
	return fmt.Sprintf("%s^%s",
		strings.ToUpper(lastNames[rng.IntN(len(lastNames))]),
		strings.ToUpper(first[rng.IntN(len(first))]))
}
