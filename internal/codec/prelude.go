package codec

// PreludeJS installs the script half of the codec as globalThis.__jsctx.
// encode(value, root) returns the wire JSON or throws an Unconvertible
// carrying the offending path; decode(wire) rebuilds a script value.
const PreludeJS = `
(function() {
	var identRe = /^[A-Za-z_$][A-Za-z0-9_$]*$/;

	function Unconvertible(path, reason) {
		this.path = path;
		this.reason = reason;
	}

	function keyPath(path, key) {
		return identRe.test(key) ? path + '.' + key : path + '[' + JSON.stringify(key) + ']';
	}

	function isThenable(v) {
		return v !== null && (typeof v === 'object' || typeof v === 'function') &&
			typeof v.then === 'function';
	}

	function hasLoneSurrogate(s) {
		for (var i = 0; i < s.length; i++) {
			var c = s.charCodeAt(i);
			if (c < 0xD800 || c > 0xDFFF) continue;
			if (c > 0xDBFF) return true;
			var next = s.charCodeAt(i + 1);
			if (!(next >= 0xDC00 && next <= 0xDFFF)) return true;
			i++;
		}
		return false;
	}

	function isPlain(v) {
		var proto = Object.getPrototypeOf(v);
		return proto === null || proto === Object.prototype;
	}

	function typeName(v) {
		var tag = Object.prototype.toString.call(v).slice(8, -1);
		var ctor = v.constructor;
		return ctor && typeof ctor.name === 'string' && ctor.name !== '' ? ctor.name : tag;
	}

	function isTypedArray(v) {
		return typeof ArrayBuffer !== 'undefined' && typeof ArrayBuffer.isView === 'function' &&
			ArrayBuffer.isView(v) && !(typeof DataView !== 'undefined' && v instanceof DataView);
	}

	function enc(v, path, stack) {
		switch (typeof v) {
		case 'undefined': return ['u'];
		case 'boolean': return ['b', v];
		case 'string':
			if (hasLoneSurrogate(v)) throw new Unconvertible(path, 'string contains a lone surrogate');
			return ['s', v];
		case 'number':
			if (v !== v) return ['f', 'NaN'];
			if (v === Infinity) return ['f', 'Infinity'];
			if (v === -Infinity) return ['f', '-Infinity'];
			if (v === 0 && 1 / v < 0) return ['f', '-0'];
			return ['n', v];
		case 'function': throw new Unconvertible(path, 'function values are not representable');
		case 'symbol': throw new Unconvertible(path, 'symbol values are not representable');
		case 'bigint': throw new Unconvertible(path, 'bigint values are not representable');
		}
		if (v === null) return ['z'];
		if (isThenable(v)) throw new Unconvertible(path, 'pending deferred result cannot be decoded');
		if (stack.indexOf(v) !== -1) throw new Unconvertible(path, 'cyclic reference');
		stack.push(v);
		try {
			if (typeof v.toJSON === 'function') return enc(v.toJSON(), path, stack);
			var out = [], i;
			if (Array.isArray(v) || isTypedArray(v)) {
				for (i = 0; i < v.length; i++) out.push(enc(v[i], path + '[' + i + ']', stack));
				return ['a', out];
			}
			if (!isPlain(v)) throw new Unconvertible(path, typeName(v) + ' values are not representable');
			var keys = Object.keys(v);
			for (i = 0; i < keys.length; i++) {
				if (hasLoneSurrogate(keys[i])) {
					throw new Unconvertible(keyPath(path, keys[i]), 'key contains a lone surrogate');
				}
				out.push([keys[i], enc(v[keys[i]], keyPath(path, keys[i]), stack)]);
			}
			return ['o', out];
		} finally {
			stack.pop();
		}
	}

	function dec(n) {
		var i, out;
		switch (n[0]) {
		case 'u': return undefined;
		case 'z': return null;
		case 'b': case 's': case 'n': return n[1];
		case 'f': return n[1] === '-0' ? -0 : Number(n[1]);
		case 'a':
			out = new Array(n[1].length);
			for (i = 0; i < n[1].length; i++) out[i] = dec(n[1][i]);
			return out;
		case 'o':
			out = {};
			for (i = 0; i < n[1].length; i++) {
				Object.defineProperty(out, n[1][i][0], {
					value: dec(n[1][i][1]), enumerable: true, writable: true, configurable: true
				});
			}
			return out;
		}
		throw new TypeError('malformed wire node: ' + n[0]);
	}

	Object.defineProperty(globalThis, '__jsctx', {
		value: {
			Unconvertible: Unconvertible,
			isThenable: isThenable,
			encode: function(v, root) { return JSON.stringify(enc(v, root, [])); },
			decode: function(wire) { return dec(JSON.parse(wire)); }
		},
		enumerable: false, writable: false, configurable: false
	});
})();
`
