// Package cataloguesvc reads qualification catalogues exported as YAML.
package cataloguesvc

import (
	"io"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/trezcool/evidencehub/core/catalogue"
)

type catalogueFile struct {
	Qualifications []catalogue.Qualification `yaml:"qualifications"`
}

// Parse decodes a catalogue document:
//
//	qualifications:
//	  - id: st0154
//	    code: ST0154
//	    title: Electrical installation
//	    categories:
//	      - id: unit-1
//	        code: U1
//	        ...
func Parse(r io.Reader) ([]catalogue.Qualification, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading catalogue")
	}
	var f catalogueFile
	if err = yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing catalogue")
	}
	if len(f.Qualifications) == 0 {
		return nil, errors.New("catalogue has no qualifications")
	}
	return f.Qualifications, nil
}

func LoadFile(path string) ([]catalogue.Qualification, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening catalogue file")
	}
	defer f.Close()
	return Parse(f)
}
