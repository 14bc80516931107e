package result

import (
	"regexp"
	"strings"

	"github.com/LK-Customs/Pingcrafty/internal/document"
)

// Software is the classified server implementation.
type Software int

const (
	SoftwareUnknown Software = iota
	SoftwareVanilla
	SoftwarePaper
	SoftwareSpigot
	SoftwareBukkit
	SoftwareForge
	SoftwareFabric
	SoftwareVelocity
	SoftwareBungeeCord
	SoftwarePurpur
	SoftwareFolia
	SoftwareOther
)

func (s Software) String() string {
	switch s {
	case SoftwareVanilla:
		return "vanilla"
	case SoftwarePaper:
		return "paper"
	case SoftwareSpigot:
		return "spigot"
	case SoftwareBukkit:
		return "bukkit"
	case SoftwareForge:
		return "forge"
	case SoftwareFabric:
		return "fabric"
	case SoftwareVelocity:
		return "velocity"
	case SoftwareBungeeCord:
		return "bungeecord"
	case SoftwarePurpur:
		return "purpur"
	case SoftwareFolia:
		return "folia"
	case SoftwareOther:
		return "other"
	default:
		return "unknown"
	}
}

var vanillaSemverRE = regexp.MustCompile(`^\d+(\.\d+){1,2}$`)

// ClassifySoftware applies the ordered detection ladder from the
// server's version name and any Forge/FML presence markers. The order
// matters: forge markers are checked before any substring test so a
// Forge modpack whose version string happens to also say "fabric"
// still classifies as forge.
func ClassifySoftware(doc *document.ServerDocument) Software {
	name := strings.ToLower(doc.VersionName)

	if doc.HasForgeData || strings.Contains(name, "forge") {
		return SoftwareForge
	}
	if strings.EqualFold(doc.ModInfoType, "FML") {
		return SoftwareForge
	}
	switch {
	case strings.Contains(name, "fabric"):
		return SoftwareFabric
	case strings.Contains(name, "paper"):
		return SoftwarePaper
	case strings.Contains(name, "purpur"):
		return SoftwarePurpur
	case strings.Contains(name, "folia"):
		return SoftwareFolia
	case strings.Contains(name, "spigot"):
		return SoftwareSpigot
	case strings.Contains(name, "bukkit"):
		return SoftwareBukkit
	case strings.Contains(name, "velocity"):
		return SoftwareVelocity
	case strings.Contains(name, "bungee"):
		return SoftwareBungeeCord
	}
	if vanillaSemverRE.MatchString(strings.TrimSpace(doc.VersionName)) {
		return SoftwareVanilla
	}
	if doc.VersionName == "" {
		return SoftwareUnknown
	}
	return SoftwareOther
}
