package hierarchy

import (
	"context"
	"strings"
	"testing"

	"github.com/hazyhaar/kostra/pkg/klass"
)

func correspondenceRegistry() *fakeRegistry {
	return &fakeRegistry{
		codes: map[int][]klass.Code{
			klass.Municipalities: {
				{Code: "0301", Name: "Oslo", Level: "1"},
				{Code: "1103", Name: "Stavanger", Level: "1"},
				{Code: "9999", Name: "Uoppgitt", Level: "1"},
			},
		},
		corr: map[[2]int][]klass.CorrespondenceItem{
			{klass.Municipalities, klass.Counties}: {
				{SourceCode: "0301", TargetCode: "03", TargetName: "Oslo", ValidFrom: "2024-01-01"},
				{SourceCode: "1103", TargetCode: "11", TargetName: "Rogaland", ValidFrom: "2024-01-01"},
			},
			{klass.Municipalities, klass.KostraGroups}: {
				{SourceCode: "0301", TargetCode: "EKG13", TargetName: "Oslo kommune"},
				{SourceCode: "1103", TargetCode: "EKG14", TargetName: "Bergen, Trondheim og Stavanger"},
			},
		},
	}
}

func TestMunicipalityCorrespondence(t *testing.T) {
	out, err := MunicipalityCorrespondence(context.Background(), correspondenceRegistry(), "2024")
	if err != nil {
		t.Fatalf("MunicipalityCorrespondence: %v", err)
	}
	if strings.Join(out.Names(), ",") != strings.Join(CorrespondenceColumns, ",") {
		t.Fatalf("columns = %v", out.Names())
	}
	if out.Len() != 3 {
		t.Fatalf("rows = %d, want 0301, 1103 and Longyearbyen", out.Len())
	}

	text := func(row int, col string) string {
		s, _ := out.Text(row, col)
		return s
	}
	if got := text(0, "fylke_nr_eka_m_tekst"); got != "EKA03 Oslo" {
		t.Errorf("fylke_nr_eka_m_tekst = %q, want %q", got, "EKA03 Oslo")
	}
	if got := text(1, "kostra_gr"); got != "EKG14" {
		t.Errorf("kostra_gr = %q, want EKG14", got)
	}
	if out.Get(0, "landet_u_oslo") != nil {
		t.Errorf("Oslo landet_u_oslo = %v, want missing", out.Get(0, "landet_u_oslo"))
	}
	if got := text(1, "landet_u_oslo"); got != "EAKUO Landet uten Oslo" {
		t.Errorf("landet_u_oslo = %q", got)
	}
	if got := text(2, "komm_nr"); got != "2111" {
		t.Errorf("last municipality = %q, want 2111", got)
	}
	if out.Get(2, "fylke_nr") != nil {
		t.Errorf("Longyearbyen fylke_nr = %v, want missing", out.Get(2, "fylke_nr"))
	}
	if got := text(2, "landet"); got != "EAK Landet" {
		t.Errorf("landet = %q", got)
	}
}

func TestMunicipalityCorrespondence_Duplicates(t *testing.T) {
	reg := correspondenceRegistry()
	key := [2]int{klass.Municipalities, klass.KostraGroups}
	reg.corr[key] = append(reg.corr[key], klass.CorrespondenceItem{SourceCode: "1103", TargetCode: "EKG15"})

	_, err := MunicipalityCorrespondence(context.Background(), reg, "2024")
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	if !strings.Contains(err.Error(), "duplicates detected") || !strings.Contains(err.Error(), "Stavanger") {
		t.Errorf("err = %v", err)
	}
}

func TestMunicipalityCorrespondence_MissingGroups(t *testing.T) {
	reg := correspondenceRegistry()
	delete(reg.corr, [2]int{klass.Municipalities, klass.KostraGroups})

	_, err := MunicipalityCorrespondence(context.Background(), reg, "2024")
	if !klass.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if !strings.Contains(err.Error(), "131 -> 112") {
		t.Errorf("err = %v, want the correspondence named", err)
	}
}
