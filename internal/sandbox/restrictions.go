package sandbox

import (
	"os"
	"path/filepath"
)

// restrictionsFileName is the script any sandboxed subprocess can
// import/exec to install the three monkey-patches before doing anything
// else, matching sandboxed_validation.py's _setup_sandbox_restrictions.
const restrictionsFileName = "sandbox_restrictions.py"

// restrictionsScript is grounded verbatim on
// original_source/.../safety/sandboxed_validation.py's restriction_code:
// the same three monkey-patches (socket.socket, subprocess.run, open),
// generalized here with safeCommands taking the place of the reference's
// hardcoded ['python', 'pytest', 'pip', 'coverage'] list so it matches the
// configured safe-command set.
func restrictionsScript(safeCommands []string) string {
	list := "["
	for i, c := range safeCommands {
		if i > 0 {
			list += ", "
		}
		list += "'" + c + "'"
	}
	list += "]"

	return `import os
import sys
import socket
import subprocess

# Block network access
original_socket = socket.socket
def restricted_socket(*args, **kwargs):
    raise PermissionError("Network access blocked in sandbox")
socket.socket = restricted_socket

# Block subprocess execution outside the safe-list
original_subprocess = subprocess.run
safe_commands = ` + list + `
def restricted_subprocess(*args, **kwargs):
    cmd = args[0] if args else kwargs.get('cmd', '')
    if isinstance(cmd, list):
        cmd_name = cmd[0] if cmd else ''
    else:
        cmd_name = str(cmd).split()[0]

    if cmd_name not in safe_commands:
        raise PermissionError(f"Command '{cmd_name}' blocked in sandbox")

    return original_subprocess(*args, **kwargs)
subprocess.run = restricted_subprocess

# Block file system access outside the sandbox root
original_open = open
def restricted_open(filename, *args, **kwargs):
    path = os.path.abspath(filename)
    sandbox_root = os.path.abspath(os.getcwd())

    if not path.startswith(sandbox_root):
        raise PermissionError(f"File access outside sandbox blocked: {filename}")

    return original_open(filename, *args, **kwargs)
__builtins__['open'] = restricted_open

print("Sandbox restrictions active")
`
}

func writeRestrictionsPreamble(sandboxDir string, safeCommands []string) error {
	path := filepath.Join(sandboxDir, restrictionsFileName)
	return os.WriteFile(path, []byte(restrictionsScript(safeCommands)), 0o644)
}
