package match

import "strings"

// commandStarters marks first words that make an intent read as a literal
// shell command, resolved verbatim instead of being matched or sent to a
// provider. Passthrough commands are still classified and gated like any
// other resolution.
var commandStarters = map[string]struct{}{
	"ls": {}, "cd": {}, "pwd": {}, "cat": {}, "grep": {}, "find": {},
	"ps": {}, "top": {}, "htop": {}, "df": {}, "du": {}, "free": {},
	"uname": {}, "uptime": {}, "who": {}, "whoami": {}, "last": {},
	"netstat": {}, "ss": {}, "ip": {}, "ping": {}, "curl": {}, "wget": {},
	"tail": {}, "head": {}, "less": {}, "more": {}, "wc": {},
	"systemctl": {}, "service": {}, "journalctl": {}, "docker": {},
	"apt": {}, "apt-get": {}, "yum": {}, "dnf": {}, "apk": {},
	"git": {}, "tar": {}, "zip": {}, "unzip": {}, "rsync": {}, "scp": {},
	"chmod": {}, "chown": {}, "kill": {}, "pkill": {},
	"mount": {}, "umount": {}, "echo": {}, "which": {}, "whereis": {},
	"date": {}, "env": {}, "history": {}, "crontab": {},
	"reboot": {}, "shutdown": {}, "rm": {}, "mv": {}, "cp": {},
	"mkdir": {}, "touch": {}, "ln": {}, "sed": {}, "awk": {},
}

// looksLikeCommand reports whether the intent's first word (skipping a
// leading sudo) is a known command.
func looksLikeCommand(normalized string) bool {
	fields := strings.Fields(normalized)
	if len(fields) == 0 {
		return false
	}
	first := fields[0]
	if first == "sudo" {
		if len(fields) < 2 {
			return false
		}
		first = fields[1]
	}
	_, ok := commandStarters[first]
	return ok
}
