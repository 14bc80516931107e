package result

import (
	"testing"

	"github.com/LK-Customs/Pingcrafty/internal/document"
)

func TestClassifySoftware(t *testing.T) {
	cases := []struct {
		name string
		doc  *document.ServerDocument
		want Software
	}{
		{"vanilla", &document.ServerDocument{VersionName: "1.21"}, SoftwareVanilla},
		{"paper", &document.ServerDocument{VersionName: "Paper 1.20.1"}, SoftwarePaper},
		{"spigot", &document.ServerDocument{VersionName: "Spigot 1.19.4"}, SoftwareSpigot},
		{"bukkit", &document.ServerDocument{VersionName: "CraftBukkit 1.8"}, SoftwareBukkit},
		{"fabric", &document.ServerDocument{VersionName: "Fabric 1.20"}, SoftwareFabric},
		{"velocity", &document.ServerDocument{VersionName: "Velocity 3.2"}, SoftwareVelocity},
		{"bungeecord", &document.ServerDocument{VersionName: "BungeeCord"}, SoftwareBungeeCord},
		{"purpur", &document.ServerDocument{VersionName: "Purpur 1.20"}, SoftwarePurpur},
		{"folia", &document.ServerDocument{VersionName: "Folia 1.20"}, SoftwareFolia},
		{"forge-by-name", &document.ServerDocument{VersionName: "Forge 1.20"}, SoftwareForge},
		{"forge-by-data", &document.ServerDocument{VersionName: "1.20", HasForgeData: true}, SoftwareForge},
		{"forge-by-fml", &document.ServerDocument{VersionName: "1.7.10", ModInfoType: "FML"}, SoftwareForge},
		{"forge-wins-over-fabric-name", &document.ServerDocument{VersionName: "totally fabric flavored", HasForgeData: true}, SoftwareForge},
		{"unknown-empty", &document.ServerDocument{VersionName: ""}, SoftwareUnknown},
		{"other", &document.ServerDocument{VersionName: "CustomCraft Engine"}, SoftwareOther},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ClassifySoftware(c.doc)
			if got != c.want {
				t.Errorf("ClassifySoftware(%q) = %s, want %s", c.doc.VersionName, got, c.want)
			}
		})
	}
}
