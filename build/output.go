package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"esocc/common"
	"esocc/link"
)

// Write writes the output of a build to path according to the profile's
// output kind, followed by the IR and LLVM files the profile asks for.  They
// are written next to the output and named after their unit.
func (c *Compiler) Write(out *Output, path string) error {
	var err error

	switch c.profile.Output {
	case OutputAsm:
		err = os.WriteFile(path, []byte(out.Units[0].Asm.Text(c.tgt)), 0644)
	case OutputObj:
		err = out.Object.WriteFile(path)
	default:
		data := link.Flatten(out.Image, c.tgt.UnitBits, c.tgt.BigEndian())
		err = os.WriteFile(path, data, 0644)
	}

	if err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	dir := filepath.Dir(path)
	for _, u := range out.Units {
		if u.IRText != "" {
			if err := writeSide(dir, u.Name, common.IRFileExt, u.IRText); err != nil {
				return err
			}
		}

		if u.LLVMText != "" {
			if err := writeSide(dir, u.Name, common.LLVMFileExt, u.LLVMText); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeSide(dir, unit, ext, text string) error {
	name := filepath.Join(dir, strings.TrimSuffix(unit, filepath.Ext(unit))+ext)
	if err := os.WriteFile(name, []byte(text), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}
