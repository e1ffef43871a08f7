package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"esocc/obj"
	"esocc/report"

	"github.com/ComedicChimera/olive"
	"github.com/kr/pretty"
	"github.com/pterm/pterm"
)

// execObjdumpCommand displays the sections, symbols, and relocations of an
// object file.
func execObjdumpCommand(result *olive.ArgParseResult) {
	path, _ := result.PrimaryArg()

	o, err := obj.ReadFile(path)
	if err != nil {
		report.ReportFatal("reading %s: %s", path, err)
	}

	if result.HasFlag("verbose") {
		pretty.Println(o)
		return
	}

	pterm.DefaultSection.Println(o.Name)
	fmt.Printf("target %s, %d-bit units\n\n", o.Target, o.UnitBits)

	tables := []pterm.TableData{sectionTable(o), symbolTable(o), relocTable(o)}
	for _, data := range tables {
		if len(data) == 1 {
			continue
		}

		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			report.ReportFatal("%s", err)
		}

		fmt.Println()
	}

	if result.HasFlag("units") {
		for _, sec := range o.Sections {
			if len(sec.Units) > 0 {
				fmt.Printf("%s:\n%s\n", sec.Kind, dumpUnits(sec.Units, o.UnitBits))
			}
		}
	}
}

func sectionTable(o *obj.Object) pterm.TableData {
	data := pterm.TableData{{"Section", "Align", "Size"}}
	for _, sec := range o.Sections {
		data = append(data, []string{sec.Kind.String(), strconv.Itoa(sec.Align), strconv.Itoa(len(sec.Units))})
	}

	return data
}

func symbolTable(o *obj.Object) pterm.TableData {
	data := pterm.TableData{{"Symbol", "Linkage", "Section", "Offset"}}
	for _, sym := range o.SortedSymbols() {
		if sym.Linkage == obj.LinkImported {
			data = append(data, []string{sym.Name, sym.Linkage.String(), "", ""})
		} else {
			data = append(data, []string{sym.Name, sym.Linkage.String(), sym.Section.String(), fmt.Sprintf("0x%02x", sym.Offset)})
		}
	}

	return data
}

func relocTable(o *obj.Object) pterm.TableData {
	data := pterm.TableData{{"Section", "Offset", "Kind", "Symbol", "Addend"}}
	for _, r := range o.Relocs {
		data = append(data, []string{
			r.Section.String(),
			fmt.Sprintf("0x%02x", r.Offset),
			r.Kind.String(),
			r.Symbol,
			strconv.FormatInt(r.Addend, 10),
		})
	}

	return data
}

// dumpUnits formats units in rows of eight, each row prefixed by the offset of
// its first unit.
func dumpUnits(units []uint32, unitBits int) string {
	digits := (unitBits + 3) / 4

	var sb strings.Builder
	for i := 0; i < len(units); i += 8 {
		fmt.Fprintf(&sb, "%04x:", i)

		for j := i; j < i+8 && j < len(units); j++ {
			fmt.Fprintf(&sb, " %0*x", digits, units[j])
		}

		sb.WriteByte('\n')
	}

	return sb.String()
}
