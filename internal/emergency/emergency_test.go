package emergency

import (
	"testing"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudit struct {
	events []logging.AuditEvent
}

func (f *fakeAudit) Log(event logging.AuditEvent) error {
	f.events = append(f.events, event)
	return nil
}

func TestValidate_PassesUnremarkableFix(t *testing.T) {
	v := New(nil)
	original := "def f():\n    pass\n"
	updated := "def f():\n    return None\n"

	safe, reason := v.Validate(domain.FixProposal{FilePath: "a.py"}, original, updated)

	assert.True(t, safe)
	assert.NotEmpty(t, reason)
}

func TestValidate_BlocksNewOsSystemCall(t *testing.T) {
	audit := &fakeAudit{}
	v := New(audit)
	original := "def f():\n    eval(user_input)\n"
	updated := "def f():\n    os.system('rm -rf /')\n"

	safe, reason := v.Validate(domain.FixProposal{FilePath: "a.py", IssueType: "security"}, original, updated)

	assert.False(t, safe)
	assert.Contains(t, reason, "os.system")
	require.Len(t, audit.events, 1)
	assert.Equal(t, "EMERGENCY_APPLICATION_BLOCK", audit.events[0].Action)
}

func TestValidate_DoesNotBlockPreexistingPattern(t *testing.T) {
	v := New(nil)
	original := "import subprocess\n\ndef f():\n    pass\n"
	updated := "import subprocess\n\ndef f():\n    return 1\n"

	safe, _ := v.Validate(domain.FixProposal{FilePath: "a.py"}, original, updated)

	assert.True(t, safe)
}

func TestValidate_BlocksNewURLScheme(t *testing.T) {
	v := New(nil)
	original := "def f():\n    pass\n"
	updated := "def f():\n    target = 'http://evil.example/exfil'\n"

	safe, reason := v.Validate(domain.FixProposal{FilePath: "a.py"}, original, updated)

	assert.False(t, safe)
	assert.Contains(t, reason, "http://")
}

func TestValidate_BlocksNewCredentialLiteral(t *testing.T) {
	v := New(nil)
	original := "def f():\n    pass\n"
	updated := "def f():\n    api_key = \"sk-hardcoded-12345\"\n"

	safe, reason := v.Validate(domain.FixProposal{FilePath: "a.py"}, original, updated)

	assert.False(t, safe)
	assert.Contains(t, reason, "credential")
}

func TestValidate_BlocksNewRoleMutation(t *testing.T) {
	v := New(nil)
	original := "def f():\n    pass\n"
	updated := "def f():\n    user.role = \"admin\"\n"

	safe, reason := v.Validate(domain.FixProposal{FilePath: "a.py"}, original, updated)

	assert.False(t, safe)
	assert.Contains(t, reason, "role")
}

func TestValidate_AuditOptionalWhenNil(t *testing.T) {
	v := New(nil)
	safe, _ := v.Validate(domain.FixProposal{FilePath: "a.py"}, "x\n", "os.system('x')\n")
	assert.False(t, safe)
}
