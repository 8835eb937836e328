package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schirrmacher/malwi/internal/config"
)

func defaultThresholds() config.Thresholds {
	return config.Default().Thresholds
}

func TestClassifyString_ShortLiteralsAreVerbatim(t *testing.T) {
	cat, verbatim := ClassifyString("short", defaultThresholds())
	assert.True(t, verbatim)
	assert.Empty(t, cat)
}

func TestClassifyString_StructureCategoriesWinOverSizeBucket(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Category
	}{
		{"insecure url", "http://example.com/payload.sh", CategoryURLInsecure},
		{"secure url", "https://example.com/package.json", CategoryURL},
		{"bare insecure protocol", "ftp", CategoryInsecureProtocol},
		{"email", "attacker@evil-domain.com", CategoryEmail},
		{"ipv4", "10.0.0.1", CategoryIP}, // not version-shaped only because of dotted-quad parse
		{"path", "/etc/passwd/shadow/file", CategoryPath},
		{"bash shell=true", "subprocess.run('ls', shell=True)", CategoryBash},
		{"sql injection", "SELECT password FROM users WHERE 1=1", CategorySQL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cat, verbatim := ClassifyString(tc.in, defaultThresholds())
			assert.False(t, verbatim)
			assert.Equal(t, tc.want, cat)
		})
	}
}

func TestClassifyString_VersionOrderingWinsFirst(t *testing.T) {
	cat, verbatim := ClassifyString("1.2.3-beta.1", defaultThresholds())
	assert.False(t, verbatim)
	assert.Equal(t, CategoryVersion, cat)
}

func TestClassifyString_Base64Heuristic(t *testing.T) {
	payload := "QWxhZGRpbjpvcGVuIHNlc2FtZUFsYWRkaW46b3BlbiBzZXNhbWU="
	cat, verbatim := ClassifyString(payload, defaultThresholds())
	assert.False(t, verbatim)
	assert.Equal(t, CategoryBase64, cat)
}

func TestClassifyString_LongOpaqueStringBucketsBySize(t *testing.T) {
	cat, verbatim := ClassifyString("just a very plain sentence with no structure at all here", defaultThresholds())
	assert.False(t, verbatim)
	assert.Equal(t, CategoryStringM, cat)
}

func TestClassifyInt_LargeBucket(t *testing.T) {
	assert.Equal(t, CategoryInteger, ClassifyInt(42, 1<<53))
	assert.Equal(t, CategoryIntegerLarge, ClassifyInt(1<<60, 1<<53))
}
