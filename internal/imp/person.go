package imp

import (
	"fmt"
	"regexp"
	"strings"
)

// impProps are the filename properties the naming pattern may capture.
var impProps = []string{"name", "sex", "idcard", "memo"}

// CheckProps reports whether every configured property name is one the
// pattern parser understands. Matching is case-insensitive.
func CheckProps(props []string) bool {
	for _, p := range props {
		ok := false
		for _, known := range impProps {
			if strings.EqualFold(p, known) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func genderOf(sex string) int {
	switch sex {
	case "男":
		return 1
	case "女":
		return 2
	default:
		return 0
	}
}

// PersonInfo is one person parsed out of an image file name, completed
// with the IDs the pipeline assigns along the way.
type PersonInfo struct {
	Index    int
	FaceID   int64
	Score    float64
	PersonID string

	Threshold int
	ImpTag    string

	Name         string
	Gender       int
	IdentityCard string
	Memo         string
}

// PersonInfoFromFilename parses the file stem with the naming pattern
// and maps each capture group onto the property configured at the same
// position. An empty name falls back to the identity card.
func PersonInfoFromFilename(fileName string, re *regexp.Regexp, props []string) (*PersonInfo, error) {
	stem := fileStem(fileName)

	caps := re.FindStringSubmatch(stem)
	if caps == nil {
		return nil, fmt.Errorf("%s not match pattern", stem)
	}
	if len(caps)-1 != len(props) {
		return nil, fmt.Errorf("%s: pattern groups not match props", stem)
	}

	info := &PersonInfo{Score: 1.0}
	for i, prop := range props {
		value := caps[i+1]
		switch strings.ToLower(prop) {
		case "name":
			info.Name = value
		case "sex":
			info.Gender = genderOf(value)
		case "idcard":
			info.IdentityCard = value
		case "memo":
			info.Memo = value
		}
	}

	if info.Name == "" && info.IdentityCard != "" {
		info.Name = info.IdentityCard
	}
	return info, nil
}
