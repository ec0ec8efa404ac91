package program

type shaderSource struct {
	vertex   string
	fragment string
}

var builtinSources = map[string]shaderSource{
	"default":  {defaultVS, defaultFS},
	"warp":     {warpVS, warpFS},
	"shell":    {shellVS, shellFS},
	"stain":    {stainVS, stainFS},
	"particle": {particleVS, particleFS},
	"corona":   {coronaVS, coronaFS},
	"null":     {nullVS, nullFS},
}

const defaultVS = `#version 410 core
uniform mat4 projection_mat;
uniform mat4 view_mat;
uniform mat4 model_mat;
uniform mat4 normal_mat;
uniform float lerp;

in vec3 in_position;
in vec3 in_next_position;
in vec3 in_normal;
in vec3 in_next_normal;
in vec3 in_tangent;
in vec3 in_bitangent;
in vec2 in_diffuse;
in vec2 in_lightmap;

out vec3 normal;
out vec3 tangent;
out vec3 bitangent;
out vec2 diffuse_uv;
out vec2 lightmap_uv;

void main() {
	vec3 position = mix(in_position, in_next_position, lerp);
	gl_Position = projection_mat * view_mat * model_mat * vec4(position, 1.0);
	normal = normalize(vec3(normal_mat * vec4(mix(in_normal, in_next_normal, lerp), 0.0)));
	tangent = normalize(vec3(normal_mat * vec4(in_tangent, 0.0)));
	bitangent = normalize(vec3(normal_mat * vec4(in_bitangent, 0.0)));
	diffuse_uv = in_diffuse;
	lightmap_uv = in_lightmap;
}
`

const defaultFS = `#version 410 core
uniform sampler2D texture_diffuse;
uniform sampler2DArray texture_lightmap;
uniform sampler2D texture_normalmap;
uniform int lightmap;
uniform int deluxemap;
uniform float bump;
uniform float specular;
uniform float alpha_threshold;
uniform vec4 tint;

in vec3 normal;
in vec3 tangent;
in vec3 bitangent;
in vec2 diffuse_uv;
in vec2 lightmap_uv;

out vec4 out_color;

void main() {
	vec4 diffuse = texture(texture_diffuse, diffuse_uv) * tint;
	if (diffuse.a < alpha_threshold) {
		discard;
	}
	vec3 light = vec3(1.0);
	if (lightmap == 1) {
		light = texture(texture_lightmap, vec3(lightmap_uv, 0.0)).rgb;
		if (deluxemap == 1) {
			vec3 dir = normalize(texture(texture_lightmap, vec3(lightmap_uv, 1.0)).rgb * 2.0 - 1.0);
			vec3 n = normalize(texture(texture_normalmap, diffuse_uv).xyz * 2.0 - 1.0);
			n = normalize(mat3(tangent, bitangent, normal) * n);
			light *= mix(1.0, max(dot(n, dir), 0.0), bump) * specular;
		}
	}
	out_color = vec4(diffuse.rgb * light, diffuse.a);
}
`

const warpVS = `#version 410 core
uniform mat4 projection_mat;
uniform mat4 view_mat;
uniform mat4 model_mat;

in vec3 in_position;
in vec2 in_diffuse;

out vec2 diffuse_uv;

void main() {
	gl_Position = projection_mat * view_mat * model_mat * vec4(in_position, 1.0);
	diffuse_uv = in_diffuse;
}
`

const warpFS = `#version 410 core
uniform sampler2D texture_diffuse;
uniform float time;
uniform vec4 tint;

in vec2 diffuse_uv;

out vec4 out_color;

void main() {
	vec2 uv = diffuse_uv + 0.125 * sin(diffuse_uv.yx * 6.2831 + time);
	out_color = texture(texture_diffuse, uv) * tint;
}
`

const shellVS = `#version 410 core
uniform mat4 projection_mat;
uniform mat4 view_mat;
uniform mat4 model_mat;
uniform float offset;
uniform float lerp;

in vec3 in_position;
in vec3 in_next_position;
in vec3 in_normal;
in vec3 in_next_normal;
in vec2 in_diffuse;

out vec2 diffuse_uv;

void main() {
	vec3 n = normalize(mix(in_normal, in_next_normal, lerp));
	vec3 position = mix(in_position, in_next_position, lerp) + n * offset;
	gl_Position = projection_mat * view_mat * model_mat * vec4(position, 1.0);
	diffuse_uv = in_diffuse;
}
`

const shellFS = `#version 410 core
uniform sampler2D texture_diffuse;
uniform vec4 shell_color;
uniform float time;

in vec2 diffuse_uv;

out vec4 out_color;

void main() {
	out_color = texture(texture_diffuse, diffuse_uv + vec2(time * 0.5)) * shell_color;
}
`

const stainVS = `#version 410 core
uniform mat4 projection_mat;
uniform mat4 view_mat;
uniform mat4 model_mat;

in vec3 in_position;
in vec2 in_lightmap;

out vec2 lightmap_uv;

void main() {
	gl_Position = projection_mat * view_mat * model_mat * vec4(in_position, 1.0);
	lightmap_uv = in_lightmap;
}
`

const stainFS = `#version 410 core
uniform sampler2D texture_stainmap;

in vec2 lightmap_uv;

out vec4 out_color;

void main() {
	out_color = texture(texture_stainmap, lightmap_uv);
}
`

const particleVS = `#version 410 core
uniform mat4 projection_mat;
uniform mat4 view_mat;
uniform vec3 view_right;
uniform vec3 view_up;

in vec3 in_position;
in vec4 in_color;
in vec2 in_diffuse;
in float in_scale;
in float in_roll;
in vec3 in_end;
in int in_type;

out vec4 color;
out vec2 diffuse_uv;

void main() {
	vec2 corner = in_diffuse * 2.0 - 1.0;
	float s = sin(in_roll), c = cos(in_roll);
	corner = vec2(corner.x * c - corner.y * s, corner.x * s + corner.y * c);
	vec3 position = in_position;
	if (in_type == 1) {
		position = mix(in_position, in_end, in_diffuse.y);
	}
	position += (view_right * corner.x + view_up * corner.y) * in_scale;
	gl_Position = projection_mat * view_mat * vec4(position, 1.0);
	color = in_color;
	diffuse_uv = in_diffuse;
}
`

const particleFS = `#version 410 core
uniform sampler2D texture_diffuse;

in vec4 color;
in vec2 diffuse_uv;

out vec4 out_color;

void main() {
	out_color = texture(texture_diffuse, diffuse_uv) * color;
}
`

const coronaVS = `#version 410 core
uniform mat4 projection_mat;
uniform mat4 view_mat;

in vec3 in_position;
in vec4 in_color;
in vec2 in_diffuse;

out vec4 color;
out vec2 corner;

void main() {
	gl_Position = projection_mat * view_mat * vec4(in_position, 1.0);
	color = in_color;
	corner = in_diffuse * 2.0 - 1.0;
}
`

const coronaFS = `#version 410 core
in vec4 color;
in vec2 corner;

out vec4 out_color;

void main() {
	float falloff = 1.0 - clamp(length(corner), 0.0, 1.0);
	out_color = vec4(color.rgb * falloff * falloff, 1.0);
}
`

const nullVS = `#version 410 core
uniform mat4 projection_mat;
uniform mat4 view_mat;
uniform mat4 model_mat;

in vec3 in_position;
in vec4 in_color;
in vec2 in_diffuse;

out vec4 vert_color;
out vec2 diffuse_uv;

void main() {
	gl_Position = projection_mat * view_mat * model_mat * vec4(in_position, 1.0);
	vert_color = in_color;
	diffuse_uv = in_diffuse;
}
`

const nullFS = `#version 410 core
uniform sampler2D texture_diffuse;
uniform vec4 color;

in vec4 vert_color;
in vec2 diffuse_uv;

out vec4 out_color;

void main() {
	out_color = texture(texture_diffuse, diffuse_uv) * vert_color * color;
}
`
